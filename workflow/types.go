// Package workflow decides what happens to classified clipboard content and
// drives the conversion, insertion and persistence collaborators.
package workflow

import "strings"

// Target is the foreground application a paste is aimed at.
type Target string

const (
	Word     Target = "word"
	Wps      Target = "wps"
	Excel    Target = "excel"
	WpsExcel Target = "wps_excel"
	None     Target = "none"
)

// ParseTarget maps a detector result onto a Target. Unknown names are None.
func ParseTarget(s string) Target {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case Word, Wps, Excel, WpsExcel:
		return t
	default:
		return None
	}
}

// AppName is the display name used in messages.
func (t Target) AppName() string {
	switch t {
	case Word:
		return "Word"
	case Wps:
		return "WPS"
	case Excel:
		return "Excel"
	case WpsExcel:
		return "WPS Spreadsheets"
	default:
		return ""
	}
}

// Policy is what to do with generated output when no target is focused.
type Policy string

const (
	Open            Policy = "open"
	Save            Policy = "save"
	CopyToClipboard Policy = "clipboard"
	NoOp            Policy = "none"
)

// ParsePolicy reads the configured no-app action. Unknown values are NoOp.
func ParsePolicy(s string) Policy {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Open, Save, CopyToClipboard:
		return p
	default:
		return NoOp
	}
}

// Params are the placeholders of a message.
type Params map[string]any

// Outcome is the result of one logical unit of work. A warning never
// changes Succeeded.
type Outcome struct {
	Succeeded     bool
	MessageKey    string
	Params        Params
	WarningKey    string
	WarningParams Params
}

func success(key string, params Params) Outcome {
	return Outcome{Succeeded: true, MessageKey: key, Params: params}
}

func failure(key string, params Params) Outcome {
	return Outcome{Succeeded: false, MessageKey: key, Params: params}
}

// Message keys shared with the agent and the catalog.
const (
	KeyClipboardEmpty      = "workflow.clipboard.empty"
	KeyClipboardReadFailed = "workflow.clipboard.read_failed"
	KeyGenericFailure      = "workflow.generic.failure"
	KeyNoAppDetected       = "workflow.no_app_detected"
	KeyConversionStarted   = "workflow.markdown.conversion_started"
	KeyFileReadFailed      = "workflow.md_file.read_failed"
	KeyFilesFound          = "workflow.md_file.multiple_found"
	KeyBatchSuccess        = "workflow.md_file.batch_success"
	KeyInsertFailedNoApp   = "workflow.insert_failed_no_app"
	KeyInsertFailed        = "workflow.document.insert_failed"
	KeySaveFailed          = "workflow.document.save_failed"
	KeyOpenFailed          = "workflow.document.open_failed"
	KeyClipboardFailed     = "workflow.action.clipboard_failed"
)

// ReadFailed is the outcome of an invocation whose clipboard could not be read.
func ReadFailed(err error) Outcome {
	return failure(KeyClipboardReadFailed, Params{"error": err.Error()})
}
