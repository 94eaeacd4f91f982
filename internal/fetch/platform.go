package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known job board or applicant tracking system.
type Platform string

const (
	PlatformGreenhouse         Platform = "greenhouse"
	PlatformLever              Platform = "lever"
	PlatformWorkday            Platform = "workday"
	PlatformWelcomeToTheJungle Platform = "welcometothejungle"
	PlatformIndeed             Platform = "indeed"
	PlatformLinkedIn           Platform = "linkedin"
	PlatformUnknown            Platform = "unknown"
)

var platformHosts = []struct {
	suffixes []string
	platform Platform
}{
	{[]string{"greenhouse.io"}, PlatformGreenhouse},
	{[]string{"lever.co"}, PlatformLever},
	{[]string{"workday.com", "myworkdayjobs.com"}, PlatformWorkday},
	{[]string{"welcometothejungle.com", "welcometothejungle.co"}, PlatformWelcomeToTheJungle},
	{[]string{"indeed.com", "indeed.fr"}, PlatformIndeed},
	{[]string{"linkedin.com"}, PlatformLinkedIn},
}

// DetectPlatform identifies the job board from a URL's host.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	for _, p := range platformHosts {
		for _, suffix := range p.suffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return p.platform
			}
		}
	}
	return PlatformUnknown
}

// PlatformContentSelectors returns selectors for the posting body on a known
// platform, most specific first. Unknown platforms have none: the whole page is used.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{
			".job__description.body",
			".job__description",
			"#content",
			".job-post-container",
		}
	case PlatformLever:
		return []string{
			".posting-page",
			".section-wrapper.page-full-width",
			".posting-description",
		}
	case PlatformWorkday:
		return []string{
			"[data-automation-id='jobPostingPage']",
			"[data-automation-id='jobDescription']",
		}
	case PlatformWelcomeToTheJungle:
		return []string{
			"[data-testid='job-section']",
			"main",
		}
	case PlatformIndeed:
		return []string{
			"#viewJobSSRRoot",
			".jobsearch-JobComponent",
			"#jobDescriptionText",
		}
	case PlatformLinkedIn:
		return []string{
			".top-card-layout",
			".decorated-job-posting__details",
			".show-more-less-html__markup",
		}
	default:
		return nil
	}
}

// PlatformNoiseSelectors returns elements to drop before text extraction.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		".cookie-banner",
		".cookie-consent",
		".gdpr-notice",
		"#onetrust-consent-sdk",
		".social-share",
		".share-buttons",
	}

	switch platform {
	case PlatformGreenhouse:
		return append(common,
			"#application-form",
			".application--wrapper",
			".voluntary-self-id",
			"#usa_self_id_section",
		)
	case PlatformLever:
		return append(common,
			".apply-section",
			".lever-application-form",
			".posting-apply",
		)
	case PlatformWorkday:
		return append(common,
			"[data-automation-id='applyButton']",
			".application-section",
		)
	case PlatformWelcomeToTheJungle, PlatformIndeed, PlatformLinkedIn:
		return append(common, "form", "nav", "footer")
	default:
		return common
	}
}
