package oidcerr

import "github.com/moogar0880/problems"

// ToProblem renders an infrastructure-level failure (SSRF-blocked fetch,
// CIBA notification delivery failure) as an RFC 7807 problem-detail object,
// the way the teacher's pkg/helpers.Problem404 renders its own infra
// failures, rather than as an OAuth protocol error: these failures happen
// outside the token/grant wire format and have no error/error_description
// shape to fit into.
func ToProblem(status int, detail string) *problems.Problem {
	problem := problems.NewStatusProblem(status)
	problem.Detail = detail
	return problem
}
