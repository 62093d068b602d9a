package util

import (
	"reflect"
	"testing"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "No links",
			input: "just words here",
			want:  nil,
		},
		{
			name:  "Single link",
			input: "see https://x.com",
			want:  []string{"https://x.com"},
		},
		{
			name:  "Duplicates keep first position",
			input: "http://a.com/1 then https://b.com and http://a.com/1 again",
			want:  []string{"http://a.com/1", "https://b.com"},
		},
		{
			name:  "Stops at markup",
			input: `<a href="https://nyti.ms/abc">story</a>`,
			want:  []string{"https://nyti.ms/abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractURLs(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractURLs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainsHTTPURL(t *testing.T) {
	if !ContainsHTTPURL("read HTTPS://EXAMPLE.COM") {
		t.Error("upper-case scheme should count")
	}
	if ContainsHTTPURL("ftp://example.com and www.example.com") {
		t.Error("non-http schemes should not count")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "Trailing slash",
			input: "https://nitter.net/nytimes/status/123/",
			want:  "https://nitter.net/nytimes/status/123",
		},
		{
			name:  "Remove www and upgrade scheme",
			input: "http://www.Example.com/story",
			want:  "https://example.com/story",
		},
		{
			name:  "Remove UTM params",
			input: "https://example.com/story?utm_source=foo&utm_medium=bar",
			want:  "https://example.com/story",
		},
		{
			name:  "Keep meaningful params and drop fragment",
			input: "https://example.com/story?id=7&utm_campaign=x#m",
			want:  "https://example.com/story?id=7",
		},
		{
			name:  "Non-http left alone",
			input: "mailto:desk@example.com",
			want:  "mailto:desk@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameURL(t *testing.T) {
	if !SameURL("https://x.com/a/status/1", "http://www.x.com/a/status/1/?utm_source=rss") {
		t.Error("expected equivalent URLs to match")
	}
	if SameURL("https://x.com/a/status/1", "https://x.com/a/status/2") {
		t.Error("different paths should not match")
	}
}

func TestGetDomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Standard domain",
			input: "https://nytimes.com/2024/01/07/story.html",
			want:  "nytimes.com",
		},
		{
			name:  "Subdomain",
			input: "https://rss.nytimes.com/services/xml",
			want:  "nytimes.com",
		},
		{
			name:  "Two-part TLD",
			input: "https://example.co.uk/product",
			want:  "example.co.uk",
		},
		{
			name:  "Subdomain with two-part TLD",
			input: "https://news.bbc.co.uk/story",
			want:  "bbc.co.uk",
		},
		{
			name:  "No www",
			input: "https://www.wsj.com",
			want:  "wsj.com",
		},
		{
			name:  "Garbage",
			input: "not a url",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetDomain(tt.input)
			if got != tt.want {
				t.Errorf("GetDomain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountFromString(t *testing.T) {
	tests := map[string]int{
		"":            0,
		"12":          12,
		" 1,234":      1234,
		"-5":          0,
		"abc":         0,
		"7 likes":     7,
		"1.2K":        1200,
		"3m":          3000000,
		"3 more":      3,
		"12.9":        12,
		"99999999999": 2147483647,
	}
	for in, want := range tests {
		if got := CountFromString(in); got != want {
			t.Errorf("CountFromString(%q) = %d, want %d", in, got, want)
		}
	}
}
