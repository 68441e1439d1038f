package visitor

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/blake2b"

	"caskhouse/contracts/tracking"
)

// Environment is what the page knows about the browser it runs in.
type Environment struct {
	UserAgent   string
	Language    string
	Screen      string
	Timezone    string
	Platform    string
	ReferrerURL string
	LandingURL  string
}

// Fingerprint hashes the stable browser traits with BLAKE2b and returns the
// first 16 hex characters.
func Fingerprint(env Environment) string {
	sum := blake2b.Sum256([]byte(strings.Join([]string{
		env.UserAgent,
		env.Language,
		env.Screen,
		env.Timezone,
		env.Platform,
	}, "|")))
	return hex.EncodeToString(sum[:8])
}

// NewID derives a visitor id: v_<fingerprint>_<creation ms in base 36>.
func NewID(fingerprint string, created time.Time) string {
	return "v_" + fingerprint + "_" + strconv.FormatInt(created.UnixMilli(), 36)
}

func parseDevice(env Environment) tracking.Device {
	ua := useragent.New(env.UserAgent)
	d := tracking.Device{
		OS:       ua.OS(),
		Platform: env.Platform,
		Mobile:   ua.Mobile(),
		Bot:      ua.Bot(),
	}
	d.Browser, d.BrowserVersion = ua.Browser()
	if d.Platform == "" {
		d.Platform = ua.Platform()
	}
	return d
}

var searchEngines = []string{"google.", "bing.", "duckduckgo.", "yahoo.", "ecosia."}

// attribute derives referrer attribution. UTM parameters on the landing URL
// win; otherwise search engines are organic, other hosts are referrals and
// no referrer is direct.
func attribute(referrer, landing string) tracking.Referrer {
	ref := tracking.Referrer{URL: referrer}

	if u, err := url.Parse(landing); err == nil {
		q := u.Query()
		if src := q.Get("utm_source"); src != "" {
			ref.Source = src
			ref.Medium = q.Get("utm_medium")
			ref.Campaign = q.Get("utm_campaign")
			return ref
		}
	}

	if referrer == "" {
		ref.Source, ref.Medium = "direct", "none"
		return ref
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		ref.Source, ref.Medium = "unknown", "referral"
		return ref
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, engine := range searchEngines {
		if strings.Contains(host, engine) {
			ref.Source = strings.TrimSuffix(engine, ".")
			ref.Medium = "organic"
			return ref
		}
	}
	ref.Source, ref.Medium = host, "referral"
	return ref
}

func landingPath(landing string) string {
	u, err := url.Parse(landing)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
