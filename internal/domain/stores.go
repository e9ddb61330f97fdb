package domain

import "context"

// Logical document names within a namespace.
const (
	DocFacts      = "facts"
	DocCandidates = "candidates"
	DocBlocklist  = "blocklist"
)

// DocumentStore is the persistence collaborator. It offers whole-document
// read/replace semantics only: the core always reads the full document,
// mutates it in memory, and writes the full document back.
type DocumentStore interface {
	Read(ctx context.Context, namespace, name string) ([]byte, error)
	Replace(ctx context.Context, namespace, name string, doc []byte) error
}

// ClassifierClient is the external text-classification collaborator. The
// response is free text; callers own validation and parsing.
type ClassifierClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
