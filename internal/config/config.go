// Package config defines the runtime configuration shape for the agent
// runtime and the environment/YAML loader that populates it.
package config

// Config is the fully resolved runtime configuration produced by Load.
type Config struct {
	Workdir          string
	ConversationsDir string
	LogPath          string
	LogLevel         string
	LogPayloads      bool

	SystemPrompt     string
	Specialists      []SpecialistConfig
	SpecialistRoutes []SpecialistRoute

	LLMClient LLMClientConfig
	OpenAI    OpenAIConfig

	OutputTruncateByte int

	SummaryEnabled               bool
	SummaryContextWindowTokens   int
	SummaryReserveBufferTokens   int
	SummaryTriggerPercent        float64
	SummaryRecentTurns           int
	SummaryMinKeepLastMessages   int
	SummaryMaxKeepLastMessages   int
	SummaryMaxSummaryChunkTokens int

	MaxSteps           int
	MaxToolParallelism int

	AgentRunTimeoutSeconds  int
	StreamRunTimeoutSeconds int
	WorkflowTimeoutSeconds  int

	Exec     ExecConfig
	Kafka    KafkaConfig
	Obs      ObsConfig
	Web      WebConfig
	Databases DatabasesConfig
	MCP      MCPConfig
	Embedding EmbeddingConfig
	EvolvingMemory EvolvingMemoryConfig
	TTS      TTSConfig
	Projects ProjectsConfig
	Skills   SkillsConfig
	Tokenization TokenizationConfig

	EnableTools   bool
	ToolAllowList []string

	Auth AuthConfig
}

// OpenAIConfig configures the primary OpenAI-compatible completions client,
// which also backs the "local"/MLX provider path.
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	SummaryModel   string
	SummaryBaseURL string
	// API selects the wire surface: "completions" or "responses".
	API          string
	ExtraHeaders map[string]string
	ExtraParams  map[string]any
	LogPayloads  bool
}

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	ExtraParams map[string]any
	PromptCache AnthropicPromptCacheConfig
}

// AnthropicPromptCacheConfig controls Anthropic prompt-caching breakpoints.
type AnthropicPromptCacheConfig struct {
	Enabled       bool
	CacheSystem   bool
	CacheTools    bool
	CacheMessages bool
}

// GoogleConfig configures the Gemini client.
type GoogleConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout int
}

// LLMClientConfig selects and configures the active LLM provider.
type LLMClientConfig struct {
	// Provider is one of "openai", "anthropic", "google", or "local".
	Provider  string
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Google    GoogleConfig
}

// ExecConfig bounds the sandboxed code/command execution tool.
type ExecConfig struct {
	BlockBinaries     []string
	MaxCommandSeconds int
}

// KafkaConfig configures the orchestrator's command/response topics.
type KafkaConfig struct {
	Brokers        string
	CommandsTopic  string
	ResponsesTopic string
}

// ClickHouseConfig configures the ClickHouse-backed observability sink.
type ClickHouseConfig struct {
	DSN                  string
	Database             string
	MetricsTable         string
	TracesTable          string
	LogsTable            string
	TimestampColumn      string
	ValueColumn          string
	ModelAttributeKey    string
	PromptMetricName     string
	CompletionMetricName string
	LookbackHours        int
	TimeoutSeconds       int
}

// ObsConfig configures tracing/metrics export.
type ObsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLP           string
	ClickHouse     ClickHouseConfig
}

// WebConfig configures the web-search tool backend.
type WebConfig struct {
	SearXNGURL string
}

// DBBackendConfig is the shape shared by the search/graph/chat backends:
// select an engine ("memory", "auto", "postgres", "none") and a DSN.
type DBBackendConfig struct {
	Backend string
	DSN     string
	Index   string
}

// DBVectorConfig extends DBBackendConfig with vector-specific tuning.
type DBVectorConfig struct {
	Backend    string
	DSN        string
	Index      string
	Dimensions int
	Metric     string
}

// DatabasesConfig configures the pluggable search/vector/graph/chat backends.
type DatabasesConfig struct {
	DefaultDSN string
	Search     DBBackendConfig
	Vector     DBVectorConfig
	Graph      DBBackendConfig
	Chat       DBBackendConfig
}

// MCPServerConfig describes one MCP server the tool registry can dial,
// either by spawning a subprocess (Command/Args/Env) or over HTTP (URL).
type MCPServerConfig struct {
	Name             string
	Command          string
	Args             []string
	Env              map[string]string
	KeepAliveSeconds int
	PathDependent    bool
	URL              string
	Headers          map[string]string
	BearerToken      string
	Origin           string
	ProtocolVersion  string
	HTTP             struct {
		TimeoutSeconds int
		ProxyURL       string
		TLS            struct {
			InsecureSkipVerify bool
			CAFile             string
			CertFile           string
			KeyFile            string
		}
	}
}

// MCPConfig lists the configured MCP servers.
type MCPConfig struct {
	Servers []MCPServerConfig
}

// EmbeddingConfig configures the embedding service used by vector tools.
type EmbeddingConfig struct {
	BaseURL   string
	Model     string
	APIKey    string
	APIHeader string
	Headers   map[string]string
	Path      string
	Timeout   int
}

// EvolvingMemoryConfig tunes the optional long-horizon memory subsystem.
type EvolvingMemoryConfig struct {
	Enabled          bool
	MaxSize          int
	TopK             int
	WindowSize       int
	EnableRAG        bool
	ReMemEnabled     bool
	MaxInnerSteps    int
	Model            string
	EnableSmartPrune bool
	PruneThreshold   float64
	RelevanceDecay   float64
	MinRelevance     float64
}

// TTSConfig configures the optional text-to-speech tool.
type TTSConfig struct {
	BaseURL string
	Model   string
	Voice   string
	Format  string
}

// FileKeyProviderConfig configures a local keystore file for workspace
// artifact encryption.
type FileKeyProviderConfig struct {
	KeystorePath string
}

// VaultKeyProviderConfig configures HashiCorp Vault's Transit engine as the
// encryption key provider.
type VaultKeyProviderConfig struct {
	Address        string
	Token          string
	KeyName        string
	MountPath      string
	Namespace      string
	TLSSkipVerify  bool
	TimeoutSeconds int
}

// AWSKMSKeyProviderConfig configures AWS KMS as the encryption key provider.
type AWSKMSKeyProviderConfig struct {
	KeyID           string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// EncryptionConfig selects and configures the workspace artifact encryption
// key provider.
type EncryptionConfig struct {
	// Provider is one of "file", "vault", or "awskms".
	Provider string
	File     FileKeyProviderConfig
	Vault    VaultKeyProviderConfig
	AWSKMS   AWSKMSKeyProviderConfig
}

// S3SSEConfig configures server-side encryption for S3-backed storage.
type S3SSEConfig struct {
	// Mode is one of "none", "sse-s3", or "sse-kms".
	Mode     string
	KMSKeyID string
}

// S3Config configures an S3-compatible object store (AWS S3 or MinIO).
type S3Config struct {
	Endpoint              string
	Region                string
	Bucket                string
	Prefix                string
	AccessKey             string
	SecretKey             string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// WorkspaceConfig configures where sandboxed workspace trees live on disk.
type WorkspaceConfig struct {
	// Mode is one of "legacy", "tmpfs", or "cached".
	Mode       string
	Root       string
	TTLSeconds int
	CacheDir   string
	TmpfsDir   string
}

// RedisConfig configures an optional Redis cache.
type RedisConfig struct {
	Enabled               bool
	Addr                  string
	Password              string
	DB                    int
	TLSInsecureSkipVerify bool
}

// ProjectsKafkaConfig configures workspace-lifecycle event publishing.
type ProjectsKafkaConfig struct {
	Enabled bool
	Brokers string
	Topic   string
}

// ProjectsConfig configures workspace storage, encryption, and eventing for
// project/session artifacts.
type ProjectsConfig struct {
	// Backend is one of "filesystem" or "s3".
	Backend    string
	Encrypt    bool
	Encryption EncryptionConfig
	Workspace  WorkspaceConfig
	S3         S3Config
	Redis      RedisConfig
	Events     ProjectsKafkaConfig
}

// SkillsConfig configures how packaged tool "skills" are loaded and cached.
type SkillsConfig struct {
	RedisCacheTTLSeconds int
	UseS3Loader          bool
}

// TokenizationConfig configures the token-counting cache used by the
// context manager.
type TokenizationConfig struct {
	Enabled             bool
	CacheSize           int
	CacheTTLSeconds     int
	FallbackToHeuristic bool
}

// OAuth2Config describes a generic OAuth2/OIDC-adjacent identity provider
// used when Auth.Provider is not "oidc".
type OAuth2Config struct {
	AuthURL             string
	TokenURL            string
	UserInfoURL         string
	LogoutURL           string
	LogoutRedirectParam string
	Scopes              []string
	ProviderName        string
	DefaultRoles        []string
	EmailField          string
	NameField           string
	PictureField        string
	SubjectField        string
	RolesField          string
}

// AuthConfig configures the optional login/session layer.
type AuthConfig struct {
	Enabled  bool
	Provider string
	IssuerURL,
	ClientID,
	ClientSecret,
	RedirectURL string
	AllowedDomains  []string
	CookieName      string
	CookieSecure    bool
	CookieDomain    string
	StateTTLSeconds int
	SessionTTLHours int
	OAuth2          OAuth2Config
}

// SpecialistConfig describes one named specialist agent that can be routed
// to as an alternative to the default provider/model pair.
type SpecialistConfig struct {
	Name         string `yaml:"name"`
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"baseURL"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// SpecialistRoute maps a matcher (e.g. a keyword or intent tag) onto the
// name of a SpecialistConfig entry.
type SpecialistRoute struct {
	Match      string `yaml:"match"`
	Specialist string `yaml:"specialist"`
}
