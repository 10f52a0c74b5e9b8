package features

import (
	"errors"
	"strings"
)

var errUnbalancedBrackets = errors.New("invalid IPv6 host: unbalanced brackets")

// paramSchemes carry ";params" on the last path segment, which is not part of the path.
var paramSchemes = map[string]bool{
	"": true, "ftp": true, "hdl": true, "prospero": true, "http": true, "imap": true,
	"https": true, "shttp": true, "rtsp": true, "rtsps": true, "rtspu": true,
	"sip": true, "sips": true, "mms": true, "sftp": true, "tel": true,
}

// urlParts are the pieces of a URL as written. Nothing is decoded.
type urlParts struct {
	scheme string // lowercased
	netloc string // userinfo@host:port
	path   string
}

// splitURL cuts raw into scheme, network location and path without
// decoding escapes or validating ports and hosts, so malformed URLs still
// yield their parts. Only unbalanced IPv6 brackets are rejected.
func splitURL(raw string) (urlParts, error) {
	s := strings.TrimLeftFunc(raw, func(r rune) bool { return r <= ' ' })
	s = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, s)

	var p urlParts
	if i := strings.IndexByte(s, ':'); i > 0 && isScheme(s[:i]) {
		p.scheme = strings.ToLower(s[:i])
		s = s[i+1:]
	}

	if strings.HasPrefix(s, "//") {
		s = s[2:]
		end := strings.IndexAny(s, "/?#")
		if end < 0 {
			end = len(s)
		}
		p.netloc, s = s[:end], s[end:]
		if strings.Contains(p.netloc, "[") != strings.Contains(p.netloc, "]") {
			return urlParts{}, errUnbalancedBrackets
		}
	}

	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	p.path = stripParams(p.scheme, s)

	return p, nil
}

func isScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

func stripParams(scheme, path string) string {
	if !paramSchemes[scheme] {
		return path
	}
	from := strings.LastIndexByte(path, '/')
	if from < 0 {
		from = 0
	}
	if i := strings.IndexByte(path[from:], ';'); i >= 0 {
		return path[:from+i]
	}
	return path
}
