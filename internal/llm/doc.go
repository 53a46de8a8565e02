// Package llm provides the text generators used by the orchestration stages.
//
// Two implementations satisfy Generator:
//
//   - OpenAI calls an OpenAI-compatible chat completions endpoint, rate limited
//     with golang.org/x/time/rate. The model is asked to finish with a
//     "CONFIDENCE: <0..1>" line, which is parsed and removed from the text.
//   - Template renders Prompt.Facts deterministically with a fixed confidence.
//
// A Generator is called once per stage and is never retried.
package llm
