// Package credentials resolves the authentication-cookie file to hand to
// the extraction tool for a given URL. Cookie acquisition and format are
// out of scope here; files are opaque handles passed through untouched.
package credentials

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func Init(logger *logrus.Logger) error {
	log = logger.WithFields(logrus.Fields{
		"component": "credentials",
	}).Logger
	return nil
}

// Provider maps a site domain to a Netscape cookies.txt file stored under
// a configured directory, e.g. cookies/youtube.com.txt. Files that do not
// look like cookie jars are ignored rather than passed to the extractor.
type Provider struct {
	dir string
}

func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

// ForURL returns the path of the cookie file covering rawurl's domain, or
// "" when none is configured. Subdomains match their registered parent:
// www.youtube.com is served by youtube.com.txt.
func (p *Provider) ForURL(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels)-1; i++ {
		domain := strings.Join(labels[i:], ".")
		path := filepath.Join(p.dir, domain+".txt")
		if !looksLikeCookieJar(path) {
			continue
		}
		log.Debugf("using cookie file %s for %s", path, host)
		return path
	}
	return ""
}

// looksLikeCookieJar checks that the file exists and contains at least one
// Netscape-format line (seven tab-separated fields) or is explicitly
// headed as a Netscape cookie file.
func looksLikeCookieJar(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if strings.Contains(strings.ToLower(line), "netscape") {
				return true
			}
			continue
		}
		if len(strings.Split(line, "\t")) >= 7 {
			return true
		}
	}
	return false
}
