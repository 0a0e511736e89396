// Package llm is the AI classification client. It submits document text to a
// remote model (Gemini, OpenAI or Anthropic), asks whether the text is a data
// leak, and maps the answer onto model.ClassificationResult. Calls are rate
// limited, retried with jittered backoff, cached per fingerprint, and bounded
// by a per-call budget.
package llm
