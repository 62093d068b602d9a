package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const nytimesRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>nytimes</title>
<item><title>Story one https://nyti.ms/abc</title><link>https://nitter.net/nytimes/status/111#m</link><pubDate>Tue, 09 Jan 2024 12:00:00 GMT</pubDate><description><![CDATA[<p>Story one</p>]]></description></item>
<item><title></title><link>https://nitter.net/nytimes/status/222#m</link><pubDate>Mon, 08 Jan 2024 12:00:00 GMT</pubDate><description><![CDATA[<p>Only <b>description</b></p>]]></description></item>
<item><title>Undated</title><link>https://nitter.net/nytimes/status/333#m</link></item>
<item><title>Too old</title><link>https://nitter.net/nytimes/status/444#m</link><pubDate>Fri, 01 Dec 2023 12:00:00 GMT</pubDate></item>
</channel></rss>`

const apRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>AP</title>
<item><title>Headline &amp; more</title><link>https://apnews.com/article/x</link><guid>ap-1</guid><pubDate>Tue, 09 Jan 2024 18:00:00 GMT</pubDate><category>Politics</category><description>Summary text</description></item>
</channel></rss>`

var fixedNow = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func testOptions(t *testing.T, accounts string) Options {
	t.Helper()
	dir := t.TempDir()
	opts := Options{
		AccountsFile:  filepath.Join(dir, "accounts.txt"),
		OutFile:       filepath.Join(dir, "data", "x_raw.json"),
		MaxPerAccount: 200,
		DaysBack:      14,
		Retries:       3,
		Concurrency:   2,
		Backoff:       func(int) time.Duration { return 0 },
		Now:           func() time.Time { return fixedNow },
		Shuffle:       func([]string) {},
	}
	if accounts != "" {
		if err := os.WriteFile(opts.AccountsFile, []byte(accounts), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return opts
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func run(t *testing.T, opts Options) Report {
	t.Helper()
	in := New(NewClient(5*time.Second, 100, opts.AllowedURLs()), opts)
	report, err := in.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return report
}

func TestRun_AccountsAndPublishers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nytimes/rss":
			w.Write([]byte(nytimesRSS))
		case "/ap.xml":
			w.Write([]byte(apRSS))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	opts := testOptions(t, "# newsrooms\n@nytimes\n\nnytimes\n")
	opts.NitterHosts = []string{srv.URL}
	opts.Publishers = []Publisher{{ID: "ap", Name: "Associated Press", URL: srv.URL + "/ap.xml"}}

	report := run(t, opts)
	if report.Accounts != 1 || report.Publishers != 1 || report.Failed != 0 || report.Records != 3 {
		t.Errorf("report = %+v", report)
	}

	recs := readRecords(t, opts.OutFile)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3: %v", len(recs), recs)
	}

	wantIDs := []string{"ap-1", "111", "222"}
	for i, id := range wantIDs {
		if recs[i]["id"] != id {
			t.Errorf("recs[%d].id = %v, want %s", i, recs[i]["id"], id)
		}
	}

	ap := recs[0]
	if ap["user"] != "ap" || ap["publisher_name"] != "Associated Press" || ap["content"] != "Headline & more" {
		t.Errorf("publisher record = %v", ap)
	}
	if ap["section"] != "Politics" || ap["date"] != "2024-01-09T18:00:00.000Z" {
		t.Errorf("publisher record = %v", ap)
	}

	tweet := recs[1]
	if tweet["user"] != "nytimes" || tweet["content"] != "Story one https://nyti.ms/abc" {
		t.Errorf("account record = %v", tweet)
	}
	if tweet["likeCount"] != float64(0) || tweet["quoteCount"] != float64(0) {
		t.Errorf("counts should be zero: %v", tweet)
	}
	if _, ok := tweet["publisher_id"]; ok {
		t.Errorf("account record should not carry publisher fields: %v", tweet)
	}

	if recs[2]["content"] != "Only description" {
		t.Errorf("empty title should fall back to description text, got %v", recs[2]["content"])
	}
}

func TestRun_MaxPerAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nytimesRSS))
	}))
	defer srv.Close()

	opts := testOptions(t, "nytimes\n")
	opts.NitterHosts = []string{srv.URL}
	opts.MaxPerAccount = 1

	run(t, opts)
	recs := readRecords(t, opts.OutFile)
	if len(recs) != 1 || recs[0]["id"] != "111" {
		t.Errorf("records = %v", recs)
	}
}

func TestRun_FallsBackThroughMirrorsToProxy(t *testing.T) {
	var mirrorHits, proxyHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/proxy/"):
			proxyHits.Add(1)
			w.Write([]byte("Title: nytimes\n\nMarkdown Content:\n" + nytimesRSS))
		default:
			mirrorHits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	opts := testOptions(t, "nytimes\n")
	opts.NitterHosts = []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c", srv.URL + "/d"}
	opts.ProxyPrefix = srv.URL + "/proxy"
	opts.Retries = 3

	report := run(t, opts)
	if got := mirrorHits.Load(); got != 3 {
		t.Errorf("mirror attempts = %d, want 3", got)
	}
	if got := proxyHits.Load(); got != 1 {
		t.Errorf("proxy attempts = %d, want 1", got)
	}
	if report.Records != 2 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_SourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ap.xml" {
			w.Write([]byte(apRSS))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := testOptions(t, "nytimes\n")
	opts.NitterHosts = []string{srv.URL}
	opts.Publishers = []Publisher{{ID: "ap", Name: "AP", URL: srv.URL + "/ap.xml"}}

	report := run(t, opts)
	if report.Failed != 1 || report.Records != 1 {
		t.Errorf("report = %+v", report)
	}
	recs := readRecords(t, opts.OutFile)
	if len(recs) != 1 || recs[0]["id"] != "ap-1" {
		t.Errorf("records = %v", recs)
	}
}

func TestRun_NoSourcesWritesEmptyArray(t *testing.T) {
	opts := testOptions(t, "")
	report := run(t, opts)
	if report.Records != 0 {
		t.Errorf("report = %+v", report)
	}
	data, err := os.ReadFile(opts.OutFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("raw file = %q, want []", data)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	opts := testOptions(t, "nytimes\n")
	opts.NitterHosts = []string{"https://nitter.example"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := New(NewClient(time.Second, 100, opts.AllowedURLs()), opts)
	if _, err := in.Run(ctx); err == nil {
		t.Error("Run() with cancelled context should fail")
	}
	if _, err := os.Stat(opts.OutFile); err == nil {
		t.Error("raw file should not be written on cancellation")
	}
}

func TestMergeRecords(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	got := mergeRecords([]Record{
		{ID: "a", Content: "first", published: t1},
		{ID: "b", published: t2},
		{ID: "c", published: t1},
		{ID: "a", Content: "second", published: t1},
	})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" || got[2].ID != "c" {
		t.Errorf("order = %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[1].Content != "second" {
		t.Errorf("duplicate should keep the last record, got %q", got[1].Content)
	}
}
