package spatiodb

// namespace represents a user-supplied key prefix as a composable
// value, per the design note that namespaces should not have their
// separator handling hard-coded into every call site.
type namespace struct {
	bytes []byte
	sep   byte
}

func newNamespace(ns string, sep byte) namespace {
	return namespace{bytes: []byte(ns), sep: sep}
}

// key returns namespace_bytes || separator || key_bytes.
func (n namespace) key(key []byte) []byte {
	out := make([]byte, 0, len(n.bytes)+1+len(key))
	out = append(out, n.bytes...)
	out = append(out, n.sep)
	out = append(out, key...)
	return out
}

// prefix returns namespace_bytes || separator, the scan prefix that
// covers every key composed under this namespace.
func (n namespace) prefix() []byte {
	out := make([]byte, 0, len(n.bytes)+1)
	out = append(out, n.bytes...)
	out = append(out, n.sep)
	return out
}
