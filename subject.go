package rpc

import (
	"regexp"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

type subjectKey struct {
	prefix  string
	service string
	method  string
}

// subjectCache memoizes subjects for the lifetime of the process. Entries are
// never replaced: the first stored subject for a key wins.
type subjectCache struct {
	m *xsync.MapOf[subjectKey, string]
}

var subjects = subjectCache{m: xsync.NewMapOf[subjectKey, string]()}

func (c subjectCache) resolve(key subjectKey) string {
	if subject, ok := c.m.Load(key); ok {
		return subject
	}

	subject, _ := c.m.LoadOrStore(key, buildSubject(key))

	return subject
}

func (c subjectCache) size() int {
	return c.m.Size()
}

// SubjectResolver maps a (service, method) pair to the subject its requests
// are published on, e.g. ("Warehouse::ShipmentService", "CreateLabel") to
// "rpc.warehouse.shipment_service.create_label".
//
// Resolution is deterministic and memoized process-wide, so resolvers with the
// same prefix share results.
type SubjectResolver struct {
	prefix string
}

func NewSubjectResolver(prefix string) *SubjectResolver {
	return &SubjectResolver{prefix: prefix}
}

// Resolve returns the subject for service and method. Unknown pairs still get
// a subject; whether anything serves it is up to the bus.
func (r *SubjectResolver) Resolve(service, method string) string {
	return subjects.resolve(subjectKey{prefix: r.prefix, service: service, method: method})
}

// SubscriptionKey resolves a subject with the default "rpc" prefix.
func SubscriptionKey(service, method string) string {
	return NewSubjectResolver(DefaultConfig().SubjectPrefix).Resolve(service, method)
}

func buildSubject(key subjectKey) string {
	service := strings.ReplaceAll(key.service, "::", "/")
	segments := strings.FieldsFunc(service, func(r rune) bool {
		return r == '/' || r == '.'
	})

	parts := make([]string, 0, len(segments)+2)
	if key.prefix != "" {
		parts = append(parts, key.prefix)
	}
	for _, s := range segments {
		parts = append(parts, underscore(s))
	}
	parts = append(parts, underscore(key.method))

	return strings.Join(parts, ".")
}

var (
	acronymBoundary = regexp.MustCompile(`([A-Z\d]+)([A-Z][a-z])`)
	wordBoundary    = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// underscore converts CamelCase to snake_case, keeping acronyms together:
// "HTTPServer" becomes "http_server".
func underscore(s string) string {
	s = acronymBoundary.ReplaceAllString(s, "${1}_${2}")
	s = wordBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ReplaceAll(s, "-", "_")

	return strings.ToLower(s)
}
