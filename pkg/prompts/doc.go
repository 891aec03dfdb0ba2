/*
Package prompts provides the prompts used by the synthetic dataset pipeline.

It includes prompts for:

  - Extracting literal seed questions from a document
  - Evolving seed questions (simple, multi-context, reasoning, complex)
  - Requesting every evolution type in one consolidated call (fast mode)
  - Answering a question strictly from supplied context snippets
  - Scoring a question/answer pair with an LLM judge

Usage:

	library := prompts.NewLibrary()

	context := map[string]interface{}{
		"content":       documentText,
		"max_questions": 3,
	}

	messages, err := library.BaseQuestions().Extract().Call(context)
	if err != nil {
		// handle error
	}

Each prompt is a PromptVersion so alternative wordings can be introduced
without changing callers.
*/
package prompts
