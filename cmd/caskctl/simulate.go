package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	contract "caskhouse/contracts/consent"
	"caskhouse/internal/frontend/app"
	"caskhouse/internal/frontend/consent"
	"caskhouse/internal/frontend/visitor"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	simFormType      = "cask_enquiry"
)

var (
	simStoragePath string
	simSiteURL     string
	simReferrer    string
	simPages       []string
	simConsent     string
	simEmail       string
	simName        string
	simDebounce    time.Duration
)

// simulateCmd drives one scripted visit through the client SDK.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a scripted visitor session against the backend",
	Long: `Run a scripted visitor session through the client SDK.

The visitor lands on the site, answers the consent banner, browses the given
pages and, when --email is set, fills the cask enquiry form with auto-save on.
Reuse --storage across runs to simulate a returning visitor.`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simStoragePath, "storage", "", "Persist client storage to this JSON file (default: in memory)")
	f.StringVar(&simSiteURL, "site", "https://caskhouse.example", "Public site origin used for page URLs")
	f.StringVar(&simReferrer, "referrer", "", "Referrer URL of the landing page")
	f.StringSliceVar(&simPages, "pages", []string{"/", "/casks", "/casks/speyside-2012", "/investment"}, "Pages to visit in order")
	f.StringVar(&simConsent, "consent", "all", "Banner answer: all, none, or a comma separated category list")
	f.StringVar(&simEmail, "email", "", "Email to type into the enquiry form")
	f.StringVar(&simName, "name", "", "Name to type into the enquiry form")
	f.DurationVar(&simDebounce, "debounce", 200*time.Millisecond, "Form auto-save debounce")
}

func parseConsentAnswer(raw string) (consent.Partial, error) {
	switch strings.TrimSpace(raw) {
	case "all":
		return consent.AcceptAll(), nil
	case "none", "":
		return consent.RejectAll(), nil
	}
	var cats []consent.Category
	for _, part := range strings.Split(raw, ",") {
		c := consent.Category(strings.TrimSpace(part))
		if _, ok := consent.CookiePrefixes[c]; !ok {
			return consent.Partial{}, fmt.Errorf("unknown consent category %q", part)
		}
		cats = append(cats, c)
	}
	return consent.Only(cats...), nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	answer, err := parseConsentAnswer(simConsent)
	if err != nil {
		return err
	}
	if len(simPages) == 0 {
		return fmt.Errorf("--pages must name at least one page")
	}
	site, err := url.Parse(simSiteURL)
	if err != nil || site.Host == "" {
		return fmt.Errorf("invalid --site %q", simSiteURL)
	}
	pageURL := func(p string) string {
		return site.ResolveReference(&url.URL{Path: p}).String()
	}

	sess, err := app.New(app.Config{
		BaseURL:     baseURL,
		StoragePath: simStoragePath,
		Debounce:    simDebounce,
		Environment: visitor.Environment{
			UserAgent:   defaultUserAgent,
			Language:    "en-GB",
			Screen:      "1440x900",
			Timezone:    "Europe/London",
			Platform:    "MacIntel",
			ReferrerURL: simReferrer,
			LandingURL:  pageURL(simPages[0]),
		},
	}, app.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess.Start(ctx)

	if !sess.Consent.HasConsent() {
		sess.Consent.SaveConsent(ctx, answer, contract.MethodBanner)
	}

	for _, p := range simPages {
		sess.Navigate(ctx, pageURL(p), pageTitle(p))
		sess.Visitor.HandleScroll(80)
	}
	sess.Visitor.HandleClick("Explore our cask collection")

	if simEmail != "" || simName != "" {
		sess.Forms.Register(simFormType, "email", "name")
		if err := sess.Forms.SetAutoSave(true); err != nil {
			log.Warn("auto-save not enabled", "error", err)
		}
		if simName != "" {
			sess.Forms.Change(simFormType, "name", simName)
		}
		if simEmail != "" {
			sess.Forms.Change(simFormType, "email", simEmail)
		}
		waitForCaptures(ctx, sess, simDebounce*5)
	}

	record := sess.Visitor.VisitorData()
	if err := sess.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	sent, failed := sess.API.Stats()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "visitor:     %s\n", record.VisitorID)
	fmt.Fprintf(out, "returning:   %t\n", record.Returning)
	fmt.Fprintf(out, "page views:  %d\n", record.PageViews)
	fmt.Fprintf(out, "engagement:  %d\n", record.EngagementScore)
	fmt.Fprintf(out, "interests:   %s\n", strings.Join(record.Interests, ","))
	fmt.Fprintf(out, "requests:    %d sent, %d failed\n", sent, failed)
	return nil
}

func waitForCaptures(ctx context.Context, sess *app.Session, limit time.Duration) {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for sess.Forms.Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			log.Warn("form captures still pending", "pending", sess.Forms.Pending())
			return
		case <-tick.C:
		}
	}
}

func pageTitle(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "Caskhouse"
	}
	parts := strings.Split(path, "/")
	return "Caskhouse | " + strings.ReplaceAll(parts[len(parts)-1], "-", " ")
}
