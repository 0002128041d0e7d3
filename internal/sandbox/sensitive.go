package sandbox

import "strings"

// sensitiveSubstrings is the fixed, allowlist-by-blocklist set of
// credential/secret locations. The check runs on the lowercased, resolved
// absolute path, never on the raw input, so "../" tricks cannot evade it.
// Following the teacher's internal/security/config.go DefaultSecurityConfig
// table convention: kept as flat data, not inlined conditionals.
var sensitiveSubstrings = []string{
	// SSH keys
	"/.ssh/",
	"/.ssh/id_rsa",
	"/.ssh/id_ed25519",
	"/.ssh/id_ecdsa",
	"/.ssh/known_hosts",
	"/.ssh/authorized_keys",

	// Cloud provider credentials
	"/.aws/credentials",
	"/.aws/config",
	"/.config/gcloud/",
	"/.azure/",

	// Kubernetes
	"/.kube/config",

	// GnuPG
	"/.gnupg/",

	// Password stores
	"/.password-store/",
	"/.local/share/keyrings/",

	// Shell history
	"/.bash_history",
	"/.zsh_history",
	"/.history",

	// dotenv files
	"/.env",
	"/.env.local",
	"/.env.production",

	// npm / git / docker credentials
	"/.npmrc",
	"/.gitconfig",
	"/.git-credentials",
	"/.docker/config.json",

	// this product's own config/auth files
	"/.clawdbot/",
	"/.clawdbot/config",
	"/.clawdbot/.session-key",
}

// isSensitivePath reports whether the lowercased absolute path matches any
// entry in the sensitive-pattern set.
func isSensitivePath(lowerAbs string) bool {
	for _, s := range sensitiveSubstrings {
		if strings.Contains(lowerAbs, s) {
			return true
		}
	}
	return false
}
