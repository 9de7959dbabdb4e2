// Package llm provides the AI classification collaborator used by ai rule
// conditions. It ships an HTTP client for a remote classification endpoint,
// with retry logic, rate limiting and response caching, and an in-process
// keyword heuristic that answers the same questions without a network hop.
package llm
