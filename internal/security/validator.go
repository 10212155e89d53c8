// Package security implements the pure validation rules (C2) that every
// other component calls before it lets a string reach a subprocess argv
// or a ZFS entity name. No function here performs I/O or holds state.
package security

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/transdock/transdock/internal/result"
)

var (
	datasetNameRe  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-.]*(/[A-Za-z0-9][A-Za-z0-9_\-.]*)*$`)
	hostnameLabelRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)
	ipv4Re         = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
	ipv6LooseRe    = regexp.MustCompile(`^[0-9a-fA-F:]+$`)
	usernameRe     = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
	quotaValueRe   = regexp.MustCompile(`^\d+[BKMGTPEZ]?$`)

	dangerousSubstrings = []string{";", "&", "|", "`", "$(", "{", "}", "[", "]", "\\", "../", "<", ">", "\n", "//"}
)

// ZFS property enumerations and value rules, closed per the spec.
var zfsPropertyRules = map[string]func(string) bool{
	"compression":           func(v string) bool { return oneOf(v, "on", "off", "lzjb", "gzip", "gzip-1", "gzip-9", "zle", "lz4", "zstd", "zstd-fast") },
	"dedup":                 func(v string) bool { return oneOf(v, "on", "off", "verify", "sha256", "sha256,verify") },
	"encryption":            func(v string) bool { return oneOf(v, "on", "off", "aes-128-ccm", "aes-192-ccm", "aes-256-ccm", "aes-128-gcm", "aes-192-gcm", "aes-256-gcm") },
	"keyformat":             func(v string) bool { return oneOf(v, "raw", "hex", "passphrase") },
	"keylocation":           func(v string) bool { return v == "prompt" || strings.HasPrefix(v, "file://") },
	"mountpoint":            func(v string) bool { return v == "none" || v == "legacy" || strings.HasPrefix(v, "/") },
	"quota":                 isQuotaValue,
	"reservation":           isQuotaValue,
	"recordsize":            func(v string) bool { return quotaValueRe.MatchString(v) },
	"atime":                 isOnOff,
	"relatime":              isOnOff,
	"checksum":              func(v string) bool { return oneOf(v, "on", "off", "fletcher2", "fletcher4", "sha256", "sha512", "skein", "edonr") },
	"copies":                func(v string) bool { return oneOf(v, "1", "2", "3") },
	"readonly":              isOnOff,
	"canmount":              func(v string) bool { return oneOf(v, "on", "off", "noauto") },
	"devices":               isOnOff,
	"exec":                  isOnOff,
	"setuid":                isOnOff,
	"nbmand":                isOnOff,
	"overlay":               isOnOff,
	"acltype":               func(v string) bool { return oneOf(v, "off", "noacl", "posixacl") },
	"aclinherit":            func(v string) bool { return oneOf(v, "discard", "noallow", "restricted", "passthrough", "passthrough-x") },
	"dnodesize":             func(v string) bool { return oneOf(v, "legacy", "auto", "1k", "2k", "4k", "8k", "16k") },
	"logbias":               func(v string) bool { return oneOf(v, "latency", "throughput") },
	"primarycache":          func(v string) bool { return oneOf(v, "all", "none", "metadata") },
	"secondarycache":        func(v string) bool { return oneOf(v, "all", "none", "metadata") },
	"sync":                  func(v string) bool { return oneOf(v, "standard", "always", "disabled") },
	"redundant_metadata":    func(v string) bool { return oneOf(v, "all", "most") },
	"special_small_blocks":  func(v string) bool { return quotaValueRe.MatchString(v) },
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func isOnOff(v string) bool { return v == "on" || v == "off" }

func isQuotaValue(v string) bool {
	return v == "none" || v == "0" || quotaValueRe.MatchString(v)
}

func containsDangerous(s string) bool {
	for _, d := range dangerousSubstrings {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}

// ValidateDatasetName checks a dataset name and returns the canonical
// form or a Validation error.
func ValidateDatasetName(name string) result.Result[string] {
	if len(name) == 0 || len(name) > 256 {
		return result.Fail[string](result.Validation("dataset_name", "dataset name must be 1-256 characters"))
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return result.Fail[string](result.Validation("dataset_name", "dataset name must not start or end with '/'"))
	}
	if containsDangerous(name) {
		return result.Fail[string](result.Validation("dataset_name", "dataset name contains disallowed characters"))
	}
	if !datasetNameRe.MatchString(name) {
		return result.Fail[string](result.Validation("dataset_name", "dataset name does not match the required pattern"))
	}
	return result.Ok(name)
}

// ValidateSnapshotName checks "dataset@short" and returns it canonicalized.
func ValidateSnapshotName(name string) result.Result[string] {
	parts := strings.Split(name, "@")
	if len(parts) != 2 {
		return result.Fail[string](result.Validation("snapshot_name", "snapshot name must contain exactly one '@'"))
	}
	dsResult := ValidateDatasetName(parts[0])
	if dsResult.IsErr() {
		return result.Fail[string](dsResult.Err())
	}
	short := parts[1]
	if len(short) == 0 || len(short) > 256 {
		return result.Fail[string](result.Validation("snapshot_name", "snapshot short name must be 1-256 characters"))
	}
	if containsDangerous(short) {
		return result.Fail[string](result.Validation("snapshot_name", "snapshot short name contains disallowed characters"))
	}
	return result.Ok(name)
}

// ValidateHostname accepts an IPv4 dotted-quad, a permissive IPv6 form,
// or an RFC-1123 domain. A dotted quad of digits must be a valid IPv4
// address; it is not accepted as a domain.
func ValidateHostname(host string) result.Result[string] {
	if len(host) == 0 || len(host) > 253 {
		return result.Fail[string](result.Validation("hostname", "hostname must be 1-253 characters"))
	}
	if host == "localhost" {
		return result.Ok(host)
	}
	if isValidIPv4(host) || (!ipv4Re.MatchString(host) && (isValidIPv6(host) || isValidDomain(host))) {
		return result.Ok(host)
	}
	return result.Fail[string](result.Validation("hostname", "hostname is not a valid IPv4 address, IPv6 address, or domain name"))
}

func isValidIPv4(host string) bool {
	m := ipv4Re.FindStringSubmatch(host)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		if len(octet) > 1 && octet[0] == '0' {
			return false
		}
		n, err := strconv.Atoi(octet)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

func isValidIPv6(host string) bool {
	if !strings.Contains(host, ":") {
		return false
	}
	if !ipv6LooseRe.MatchString(host) {
		return false
	}
	return strings.Count(host, ":") >= 2
}

func isValidDomain(host string) bool {
	labels := strings.Split(host, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if !hostnameLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// ValidateUsername enforces the POSIX-style login name pattern.
func ValidateUsername(username string) result.Result[string] {
	if len(username) == 0 || len(username) > 32 {
		return result.Fail[string](result.Validation("username", "username must be 1-32 characters"))
	}
	if !usernameRe.MatchString(username) {
		return result.Fail[string](result.Validation("username", "username must match ^[a-z_][a-z0-9_-]*$"))
	}
	return result.Ok(username)
}

// ValidatePort enforces the 1..65535 range.
func ValidatePort(port int) result.Result[int] {
	if port < 1 || port > 65535 {
		return result.Fail[int](result.Validation("port", "port must be between 1 and 65535"))
	}
	return result.Ok(port)
}

// ValidatePath enforces an absolute, bounded, injection-free path.
func ValidatePath(path string) result.Result[string] {
	if !strings.HasPrefix(path, "/") {
		return result.Fail[string](result.Validation("path", "path must be absolute"))
	}
	if len(path) > 1024 {
		return result.Fail[string](result.Validation("path", "path must be at most 1024 characters"))
	}
	if strings.Contains(path, "..") || containsDangerous(path) {
		return result.Fail[string](result.Validation("path", "path contains disallowed characters"))
	}
	return result.Ok(path)
}

// ValidateZFSProperty validates both the property name against the
// closed set and its value against the property-specific rule.
func ValidateZFSProperty(name, value string) result.Result[string] {
	rule, ok := zfsPropertyRules[name]
	if !ok {
		return result.Fail[string](result.Validation("property", fmt.Sprintf("unknown zfs property %q", name)))
	}
	if !rule(value) {
		return result.Fail[string](result.Validation("value", fmt.Sprintf("invalid value %q for property %q", value, name)))
	}
	return result.Ok(value)
}

// EscapeShellArgument wraps an argument in single quotes for the rare
// case a value must be embedded in a logged or replayed shell string
// (never used to build an argv passed to exec.Command, which always
// takes arguments unquoted).
func EscapeShellArgument(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
}
