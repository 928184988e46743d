package infrastructure

import "strings"

// classRule is one pattern bucket of the failure taxonomy. Rules are checked
// in declaration order and the first match wins; the ordering encodes which
// failure mode is considered more specific and must not be rearranged.
type classRule struct {
	patterns  []string
	message   string
	retryable bool
}

var classRules = []classRule{
	{
		// Permanent availability problems: retrying wastes resources.
		patterns: []string{
			"video unavailable",
			"this video is private",
			"private video",
			"content isn't available",
			"not available in your country",
			"not available in your region",
			"geo restricted",
			"geo-restricted",
			"sign in to confirm your age",
			"age-restricted",
			"age restricted",
			"removed by the uploader",
			"removed for violating",
			"copyright claim",
			"copyright grounds",
			"account associated with this video has been terminated",
		},
		message:   "content is unavailable",
		retryable: false,
	},
	{
		patterns: []string{
			"unsupported url",
			"is not a valid url",
			"invalid url",
			"no suitable extractor",
		},
		message:   "unsupported or malformed URL",
		retryable: false,
	},
	{
		patterns: []string{
			"http error 404",
			"not found",
		},
		message:   "content not found",
		retryable: false,
	},
	{
		patterns: []string{
			"http error 403",
			"forbidden",
			"access denied",
		},
		message:   "access denied by server",
		retryable: true,
	},
	{
		patterns: []string{
			"http error 429",
			"too many requests",
			"rate limit",
			"rate-limit",
			"throttl",
		},
		message:   "rate limited by server",
		retryable: true,
	},
	{
		patterns: []string{
			"timed out",
			"timeout",
		},
		message:   "request timed out",
		retryable: true,
	},
	{
		patterns: []string{
			"unable to connect",
			"connection refused",
			"connection reset",
			"network is unreachable",
			"name or service not known",
			"temporary failure in name resolution",
			"getaddrinfo failed",
			"ssl",
			"tls",
			"certificate",
			"network error",
		},
		message:   "network error",
		retryable: true,
	},
	{
		patterns: []string{
			"incomplete read",
			"connection broken",
			"transfer closed",
			"got server http error",
			"eof occurred",
		},
		message:   "transfer interrupted by server",
		retryable: true,
	},
}

// Classify maps raw tool diagnostic text to a concise user-facing message
// and whether a delayed re-attempt has a reasonable chance of success.
// Unrecognized diagnostics are conservatively fatal.
func Classify(diagnostic string) (message string, retryable bool) {
	text := strings.ToLower(diagnostic)

	for _, rule := range classRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(text, pattern) {
				return rule.message, rule.retryable
			}
		}
	}

	return "download failed", false
}
