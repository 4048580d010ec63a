package gen

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/sariahouse/racebot/internal/goal"
)

// BlitzClient rolls seeds on the alternate generator website, which has no
// API: it posts the generator form and scrapes the resulting seed page.
type BlitzClient struct {
	http    *http.Client
	baseURL string
}

func NewBlitzClient(httpClient *http.Client, baseURL string) *BlitzClient {
	return &BlitzClient{http: httpClient, baseURL: baseURL}
}

// RollSeed submits the generator form and reads the seed UUID from the
// redirect target and the hash icons from the page. The spoiler unlock
// setting is handled by the site itself, keyed to the race room.
func (c *BlitzClient) RollSeed(ctx context.Context, updates chan<- SeedRollUpdate, policy goal.UnlockPolicy, roomURL, version string) (*SeedInfo, error) {
	send(ctx, updates, SeedRollUpdate{Kind: UpdateStarted})

	form := url.Values{"version": {version}}
	switch policy {
	case goal.UnlockNow:
		form.Set("unlockSetting", "ALWAYS")
	case goal.UnlockNever:
		form.Set("unlockSetting", "NEVER")
	default:
		if roomURL == "" {
			return nil, errors.New("cannot unlock a blitz seed after the race without a race room")
		}
		form.Set("unlockSetting", "RACETIME")
		form.Set("racetimeRoom", roomURL)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generator", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	seedUUID, err := parseSeedURL(resp.Request.URL)
	if err != nil {
		return nil, err
	}
	icons, err := scrapeHashIcons(resp.Body)
	if err != nil {
		return nil, err
	}

	return &SeedInfo{
		BlitzUUID: seedUUID.String(),
		GenTime:   time.Now(),
		HashIcons: icons,
	}, nil
}

// parseSeedURL extracts the seed UUID from a /seed/{uuid} page URL.
func parseSeedURL(u *url.URL) (uuid.UUID, error) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "seed" {
		return uuid.UUID{}, errors.Errorf("generator did not redirect to a seed page: %s", u)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.UUID{}, errors.Wrapf(err, "generator redirected to unexpected page %s", u)
	}
	return id, nil
}

// scrapeHashIcons reads the seed's five hash icons from the title
// attributes inside the page's hash-icons element.
func scrapeHashIcons(body io.Reader) ([]string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}
	container := findByClass(doc, "hash-icons")
	if container == nil {
		return nil, errors.New("seed page has no hash icons")
	}
	var icons []string
	for child := container.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		for _, attr := range child.Attr {
			if attr.Key == "title" && attr.Val != "" {
				icons = append(icons, attr.Val)
			}
		}
	}
	if len(icons) != 5 {
		return nil, errors.Errorf("seed page has %d hash icons, want 5", len(icons))
	}
	return icons, nil
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return n
				}
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByClass(child, class); found != nil {
			return found
		}
	}
	return nil
}
