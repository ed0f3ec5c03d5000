// Package bpath resolves the lexical part of path handling: splitting a
// path into its directory and final component, and canonicalizing "."
// and ".." segments without touching the filesystem. The name-lookup walk
// itself (crossing directories) lives in package fs; bpath only ever sees
// bytes.
package bpath

import "ustr"

// / Canonicalize collapses "." segments, resolves ".." against the
// / preceding component, and squeezes repeated '/'s, without consulting
// / the filesystem. A leading '/' is preserved. Used by fd.Cwd_t before
// / handing a path to fs.Namei so a process can never escape its chroot
// / by purely lexical ".." chains once one is established.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	abs := p.IsAbsolute()
	parts := Split(p)
	out := make([]ustr.Ustr, 0, len(parts))
	for _, c := range parts {
		switch {
		case len(c) == 0, c.Isdot():
			continue
		case c.Isdotdot():
			if len(out) > 0 && !out[len(out)-1].Isdotdot() {
				out = out[:len(out)-1]
			} else if !abs {
				out = append(out, c)
			}
		default:
			out = append(out, c)
		}
	}
	r := ustr.MkUstr()
	if abs {
		r = append(r, '/')
	}
	for i, c := range out {
		if i > 0 {
			r = append(r, '/')
		}
		r = append(r, c...)
	}
	if len(r) == 0 {
		r = ustr.MkUstrDot()
	}
	return r
}

// / Split breaks p into its '/'-separated components, dropping empty
// / components produced by leading/trailing/doubled slashes.
func Split(p ustr.Ustr) []ustr.Ustr {
	var parts []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// / Dirname returns everything before the final path component, or "."
// / if p has no directory part.
func Dirname(p ustr.Ustr) ustr.Ustr {
	i := lastSlash(p)
	if i < 0 {
		return ustr.MkUstrDot()
	}
	if i == 0 {
		return ustr.MkUstrRoot()
	}
	return p[:i]
}

// / Basename returns the final path component of p.
func Basename(p ustr.Ustr) ustr.Ustr {
	i := lastSlash(p)
	return p[i+1:]
}

func lastSlash(p ustr.Ustr) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return i
		}
	}
	return -1
}
