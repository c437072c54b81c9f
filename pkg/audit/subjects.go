package audit

import "fmt"

// SubjectAudit is the default global audit subject.
const SubjectAudit = "identity.broker.audit"

// BuildMethodSubject builds the granular audit subject for one broker
// method under the given global subject.
func BuildMethodSubject(global, method string) string {
	return fmt.Sprintf("%s.%s", global, method)
}
