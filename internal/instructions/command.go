package instructions

// Kind identifies one of the three command types an instruction file may
// declare.
type Kind string

const (
	// KindCreate generates each target file from scratch in a single model
	// call.
	KindCreate Kind = "create"

	// KindEdit rewrites each existing target file in a single model call.
	KindEdit Kind = "edit"

	// KindFeedbackEdit edits each target file in a loop, feeding test output
	// back to the model until it stops producing content or retries run out.
	KindFeedbackEdit Kind = "feedback_edit"
)

// Meta holds the fields every command kind shares. The concrete kinds embed
// it, so the scheduler and engine can read the common fields without a type
// switch.
type Meta struct {
	// ID is the unique name used to select the command on the command line
	// and to prefix its log artifacts.
	ID string

	// TargetFiles are the files the command generates or edits, relative to
	// the target directory.
	TargetFiles []string

	// Instruction is the raw instruction text, before shared-prompt and
	// built-in macro resolution.
	Instruction string

	// Context are glob patterns for files shown to the model alongside the
	// target, resolved against the target directory.
	Context []string

	// Model answers the editing prompts. Already resolved against the file
	// defaults; never empty.
	Model string

	// PromptModel rewrites instructions before the first editing prompt.
	// Already resolved against the file defaults; never empty.
	PromptModel string
}

// Common returns the shared fields. It also satisfies Command for every
// kind that embeds Meta.
func (m Meta) Common() Meta { return m }

func (Meta) sealed() {}

// Command is the closed set of instruction-file command kinds: Create, Edit
// and FeedbackEdit. Code that needs kind-specific fields type-switches on
// the concrete types.
type Command interface {
	Kind() Kind
	Common() Meta

	sealed()
}

// Create generates target files that do not exist yet.
type Create struct {
	Meta
}

// Kind returns KindCreate.
func (*Create) Kind() Kind { return KindCreate }

// Edit rewrites target files that already exist.
type Edit struct {
	Meta
}

// Kind returns KindEdit.
func (*Edit) Kind() Kind { return KindEdit }

// FeedbackEdit edits target files in a test-feedback loop.
type FeedbackEdit struct {
	Meta

	// TestCommands are shell commands run before every cycle; their combined
	// output is embedded in the next prompt. The {{filename}} macro expands
	// to the file under edit.
	TestCommands []string

	// MaxRetries bounds the number of feedback cycles per file. At least 1.
	MaxRetries int
}

// Kind returns KindFeedbackEdit.
func (*FeedbackEdit) Kind() Kind { return KindFeedbackEdit }
