package mfconfig

// DefaultPathFunc supplies the config path used when no explicit path is given.
type DefaultPathFunc func() string

// Resolve returns explicit when it is non-empty and def() otherwise. The
// path is returned verbatim: existence and writability are not checked.
// def is called at most once and only when explicit is empty.
func Resolve(explicit string, def DefaultPathFunc) string {
	if explicit != "" {
		return explicit
	}
	if def == nil {
		return ""
	}
	return def()
}
