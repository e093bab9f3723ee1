package request

import "testing"

func TestPageLogFirstPage(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e"}
	page, err := PageLog(lines, LogPageRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("PageLog: %v", err)
	}
	if len(page.Lines) != 2 || page.Lines[0] != "a" || page.Lines[1] != "b" {
		t.Fatalf("got %v", page.Lines)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}
}

func TestPageLogFollowsToken(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e"}
	first, err := PageLog(lines, LogPageRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("PageLog: %v", err)
	}
	second, err := PageLog(lines, LogPageRequest{PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("PageLog second page: %v", err)
	}
	if len(second.Lines) != 2 || second.Lines[0] != "c" || second.Lines[1] != "d" {
		t.Fatalf("got %v", second.Lines)
	}
}

func TestPageLogLastPageHasNoNextToken(t *testing.T) {
	lines := []string{"a", "b"}
	page, err := PageLog(lines, LogPageRequest{PageSize: 10})
	if err != nil {
		t.Fatalf("PageLog: %v", err)
	}
	if page.NextPageToken != "" {
		t.Fatal("expected no next page token when the page reaches the end")
	}
}

func TestPageLogRejectsInvalidToken(t *testing.T) {
	lines := []string{"a", "b"}
	if _, err := PageLog(lines, LogPageRequest{PageToken: "not-a-real-token"}); err == nil {
		t.Fatal("expected an error for a malformed page token")
	}
}
