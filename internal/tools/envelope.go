package tools

// ErrorKind enumerates the reasons a tool result can fail, mirrored onto the
// wire so the orchestrator and the model can decide whether a retry with
// adjusted arguments makes sense.
type ErrorKind string

const (
	ErrorParameterValidation ErrorKind = "parameter_validation"
	ErrorToolExecution       ErrorKind = "tool_execution"
	ErrorExternalAPI         ErrorKind = "external_api"
	ErrorNetwork             ErrorKind = "network"
	ErrorRateLimit           ErrorKind = "rate_limit"
	ErrorLLMTimeout          ErrorKind = "llm_timeout"
	ErrorLLMResponseParse    ErrorKind = "llm_response_parse"
	ErrorLLMAPI              ErrorKind = "llm_api"
	ErrorDataNotFound        ErrorKind = "data_not_found"
	ErrorDataFormat          ErrorKind = "data_format"
	ErrorResourceExhausted   ErrorKind = "resource_exhausted"
	ErrorContentFilter       ErrorKind = "content_filter"
)

// ToolType distinguishes a single-step tool from one that itself orchestrates
// a sequence of calls (e.g. the parallel multi-tool dispatcher).
type ToolType string

const (
	ToolTypeAtomic   ToolType = "atomic"
	ToolTypeWorkflow ToolType = "workflow"
)

// ImageDetail is the multimodal re-encode hint for an inject_images request.
type ImageDetail string

const (
	DetailLow  ImageDetail = "low"
	DetailHigh ImageDetail = "high"
	DetailAuto ImageDetail = "auto"
)

// PendingImageRequest asks the orchestrator to enqueue a file for
// multimodal injection into the next model turn.
type PendingImageRequest struct {
	Path   string      `json:"path"`
	Detail ImageDetail `json:"detail,omitempty"`
}

// Envelope is the uniform result every tool returns, success or failure. A
// tool never panics or returns a bare Go error to its caller: Dispatch
// converts any internal exception into an Envelope with ErrorKind set.
type Envelope struct {
	Success  bool     `json:"success"`
	ToolName string   `json:"tool_name"`
	ToolType ToolType `json:"tool_type,omitempty"`

	// Success path.
	Data any `json:"data,omitempty"`

	// Failure path.
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	// Auxiliary, either path.
	GeneratedFiles      []string               `json:"generated_files,omitempty"`
	InjectImages        []PendingImageRequest  `json:"inject_images,omitempty"`
	PartialResults      any                    `json:"partial_results,omitempty"`
	RecoverySuggestions []string               `json:"recovery_suggestions,omitempty"`
}

// Ok builds a success envelope for name carrying data and any generated files.
func Ok(name string, toolType ToolType, data any, generatedFiles ...string) Envelope {
	return Envelope{
		Success:        true,
		ToolName:       name,
		ToolType:       toolType,
		Data:           data,
		GeneratedFiles: generatedFiles,
	}
}

// Fail builds a failure envelope for name with the given error kind and message.
func Fail(name string, toolType ToolType, kind ErrorKind, message string) Envelope {
	return Envelope{
		Success:      false,
		ToolName:     name,
		ToolType:     toolType,
		ErrorKind:    kind,
		ErrorMessage: message,
	}
}
