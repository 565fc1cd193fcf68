// Package language normalizes user-supplied target languages and renders
// display names for prompts and CLI output.
//
// Inputs may be BCP 47 tags ("pt-BR"), ISO 639-1/639-2 codes ("de", "deu") or
// English language names ("German"). Everything is reduced to the base
// language code used throughout the job store.
package language
