package prompts

// Library defines the interface for the complete prompt library.
type Library interface {
	BaseQuestions() BaseQuestionsPrompt
	Evolution() EvolutionPrompt
	Answer() AnswerPrompt
	Judge() JudgePrompt
}

// LibraryImpl implements the Library interface.
type LibraryImpl struct {
	baseQuestions BaseQuestionsPrompt
	evolution     EvolutionPrompt
	answer        AnswerPrompt
	judge         JudgePrompt
}

func (l *LibraryImpl) BaseQuestions() BaseQuestionsPrompt { return l.baseQuestions }
func (l *LibraryImpl) Evolution() EvolutionPrompt         { return l.evolution }
func (l *LibraryImpl) Answer() AnswerPrompt               { return l.answer }
func (l *LibraryImpl) Judge() JudgePrompt                 { return l.judge }

// NewLibrary creates a new prompt library instance.
func NewLibrary() Library {
	return &LibraryImpl{
		baseQuestions: NewBaseQuestionsVersions(),
		evolution:     NewEvolutionVersions(),
		answer:        NewAnswerVersions(),
		judge:         NewJudgeVersions(),
	}
}

// DefaultLibrary is the default prompt library instance.
var DefaultLibrary = NewLibrary()
