// Package flows holds the orchestration behind each Engine operation:
// login, reissue, logout, access validation and signup.
//
// Each Run* function takes an explicit dependency struct and returns a
// result carrying either the outcome or a classified failure kind. The root
// package maps failure kinds to its public errors, metrics and audit events;
// flows itself owns no resources and keeps no state between calls.
package flows
