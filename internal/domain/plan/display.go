package plan

// DisplayStatus is the status shown to users. While a submitted plan sits in
// the grading queue it presents as "waiting_approval" instead of its stored
// status; the virtual state is never persisted.
func DisplayStatus(s Snapshot) string {
	if s.Submission == SubmissionSubmitted && !s.Graded() && !s.IsDropPending {
		return "waiting_approval"
	}
	return string(s.Status)
}
