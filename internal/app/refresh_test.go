package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/icse/api-cache/internal/testutil"
	"github.com/icse/api-cache/pkg/client"
	"github.com/icse/api-cache/pkg/fixture"
	"github.com/icse/api-cache/pkg/iam"
	"github.com/icse/api-cache/pkg/pagination"
	"github.com/icse/api-cache/pkg/resources"
	"go.uber.org/multierr"
)

var fixedNow = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

const (
	flavorsPath  = "/global/v2/getFlavors"
	versionsPath = "/global/v1/versions"
	imagesPath   = "/v1/images"
	profilesPath = "/v1/instance/profiles"
)

func testCatalog(base string) []resources.Resource {
	return []resources.Resource{
		{Name: resources.ClusterFlavors, URL: base + flavorsPath + "?zone={{ .Zone }}&provider=vpc-gen2"},
		{Name: resources.ClusterVersions, URL: base + versionsPath},
		{Name: resources.VSIImages, URL: base + imagesPath + "?version={{ .Date }}&generation=2"},
		{Name: resources.VSIInstanceProfiles, URL: base + profilesPath + "?version={{ .Date }}&generation=2"},
	}
}

// serveAll configures the mock with a token and one healthy answer per resource.
func serveAll(mock *testutil.MockCloud) {
	mock.SetToken("tok123")
	mock.SetPages(flavorsPath, `[{"name":"bx2.2x8","cores":2}]`)
	mock.SetPages(versionsPath, `{"kubernetes":[{"major":1,"minor":31}],"openshift":[]}`)
	mock.SetPages(imagesPath,
		`{"images":[{"name":"ibm-ubuntu-24-04"}],"limit":1}`,
		`{"images":[{"name":"ibm-centos-stream-9"}],"limit":1}`,
	)
	mock.SetPages(profilesPath, `{"profiles":[{"name":"cx2-2x4"}]}`)
}

func newTestRefresher(t *testing.T, mock *testutil.MockCloud, dir string) *Refresher {
	t.Helper()
	c, err := client.New(client.DefaultConfig("cache-api-calls-test/1.0"))
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}
	return &Refresher{
		Auth:    iam.NewAuthenticator(c, mock.TokenURL()),
		Fetcher: pagination.NewFetcher(c),
		Writer:  fixture.NewWriter(dir),
		Catalog: testCatalog(mock.URL()),
		Params:  resources.NewParams(fixedNow, "", ""),
		Now:     func() time.Time { return fixedNow },
	}
}

func readFixture(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name+".js"))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestRefresh_WritesAllFixtures(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)

	dir := t.TempDir()
	report, err := newTestRefresher(t, mock, dir).Refresh(context.Background(), "key")
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	want := map[string]string{
		resources.ClusterFlavors:      `export const clusterFlavors = [{"name": "bx2.2x8", "cores": 2}] //pragma: allowlist secret` + "\n",
		resources.ClusterVersions:     `export const clusterVersions = {"kubernetes": [{"major": 1, "minor": 31}], "openshift": []} //pragma: allowlist secret` + "\n",
		resources.VSIImages:           `export const vsiImages = {"images": [{"name": "ibm-ubuntu-24-04"}, {"name": "ibm-centos-stream-9"}], "limit": 1} //pragma: allowlist secret` + "\n",
		resources.VSIInstanceProfiles: `export const vsiInstanceProfiles = {"profiles": [{"name": "cx2-2x4"}]} //pragma: allowlist secret` + "\n",
	}
	for name, contents := range want {
		if got := readFixture(t, dir, name); got != contents {
			t.Errorf("%s fixture mismatch:\ngot  %q\nwant %q", name, got, contents)
		}
	}

	if len(report.Written) != 4 || len(report.Failed) != 0 {
		t.Errorf("report = %+v, want 4 written and none failed", report)
	}
	if got := mock.GetPathCount(imagesPath); got != 2 {
		t.Errorf("images requested %d times, want 2 pages", got)
	}
	if got := mock.GetLastRequestHeader().Get("Authorization"); got != "Bearer tok123" {
		t.Errorf("Authorization = %q, want Bearer tok123", got)
	}
}

func TestRefresh_RendersDatedURLs(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)

	var versions []string
	for _, path := range []string{imagesPath, profilesPath} {
		mock.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
			versions = append(versions, r.URL.Query().Get("version"))
			w.Write([]byte(`{"items":[]}`))
		})
	}
	var zone string
	mock.SetHandler(flavorsPath, func(w http.ResponseWriter, r *http.Request) {
		zone = r.URL.Query().Get("zone")
		w.Write([]byte(`[]`))
	})

	if _, err := newTestRefresher(t, mock, t.TempDir()).Refresh(context.Background(), "key"); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	if diff := cmp.Diff([]string{"2026-03-04", "2026-03-04"}, versions); diff != "" {
		t.Errorf("version parameters (-want +got):\n%s", diff)
	}
	if zone != resources.DefaultZone {
		t.Errorf("zone = %q, want %q", zone, resources.DefaultZone)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)

	dir := t.TempDir()
	r := newTestRefresher(t, mock, dir)

	if _, err := r.Refresh(context.Background(), "key"); err != nil {
		t.Fatalf("first Refresh() failed: %v", err)
	}
	first := make(map[string]string)
	for _, name := range resources.Names() {
		first[name] = readFixture(t, dir, name)
	}

	report, err := r.Refresh(context.Background(), "key")
	if err != nil {
		t.Fatalf("second Refresh() failed: %v", err)
	}
	for _, name := range resources.Names() {
		if got := readFixture(t, dir, name); got != first[name] {
			t.Errorf("%s changed between identical runs", name)
		}
	}
	if len(report.Unchanged) != 4 {
		t.Errorf("Unchanged = %v, want all 4 fixtures", report.Unchanged)
	}
}

func TestRefresh_FailFastWritesNothing(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)
	mock.SetResponse(profilesPath, testutil.NewServerErrorResponse())

	dir := t.TempDir()
	_, err := newTestRefresher(t, mock, dir).Refresh(context.Background(), "key")
	if err == nil {
		t.Fatal("Refresh() should fail")
	}
	if got := client.ClassOf(err); got != client.ErrorClassStatus {
		t.Errorf("ClassOf() = %q, want status", got)
	}

	var resErr *ResourceError
	if !errors.As(err, &resErr) || resErr.Resource != resources.VSIInstanceProfiles {
		t.Errorf("error %v should name %s", err, resources.VSIInstanceProfiles)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("fail-fast run wrote %d files, want none", len(entries))
	}
}

func TestRefresh_FailFastStopsAtFirstFailure(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)
	mock.SetResponse(versionsPath, testutil.NewJSONResponse(`{"kubernetes": [`))

	_, err := newTestRefresher(t, mock, t.TempDir()).Refresh(context.Background(), "key")
	if !errors.Is(err, client.ErrMalformedJSON) {
		t.Fatalf("Refresh() error = %v, want malformed JSON", err)
	}
	if got := mock.GetPathCount(imagesPath) + mock.GetPathCount(profilesPath); got != 0 {
		t.Errorf("resources after the failure were requested %d times", got)
	}
}

func TestRefresh_KeepGoing(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)
	mock.SetResponse(versionsPath, testutil.NewServerErrorResponse())

	dir := t.TempDir()
	r := newTestRefresher(t, mock, dir)
	r.KeepGoing = true

	report, err := r.Refresh(context.Background(), "key")
	if err == nil {
		t.Fatal("Refresh() should report the failed resource")
	}
	if errs := multierr.Errors(err); len(errs) != 1 {
		t.Errorf("got %d errors, want 1: %v", len(errs), err)
	}
	if diff := cmp.Diff([]string{resources.ClusterVersions}, report.Failed); diff != "" {
		t.Errorf("Failed (-want +got):\n%s", diff)
	}
	if len(report.Written) != 3 {
		t.Errorf("Written = %v, want 3 fixtures", report.Written)
	}
	if _, err := os.Stat(filepath.Join(dir, "clusterVersions.js")); !os.IsNotExist(err) {
		t.Error("failed resource should not have a fixture")
	}
	readFixture(t, dir, resources.VSIInstanceProfiles)
}

func TestRefresh_KeepGoingCombinesFailures(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)
	mock.SetResponse(flavorsPath, testutil.NewServerErrorResponse())
	mock.SetResponse(imagesPath, testutil.NewJSONResponse(`not json`))

	r := newTestRefresher(t, mock, t.TempDir())
	r.KeepGoing = true

	report, err := r.Refresh(context.Background(), "key")
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), err)
	}
	if client.ClassOf(errs[0]) != client.ErrorClassStatus || client.ClassOf(errs[1]) != client.ErrorClassMalformedJSON {
		t.Errorf("error classes = %q, %q", client.ClassOf(errs[0]), client.ClassOf(errs[1]))
	}
	if len(report.Written) != 2 {
		t.Errorf("Written = %v, want 2 fixtures", report.Written)
	}
}

func TestRefresh_TokenFailure(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)
	mock.SetResponse(testutil.TokenPath, testutil.NewIAMErrorResponse())

	dir := t.TempDir()
	r := newTestRefresher(t, mock, dir)
	r.KeepGoing = true

	_, err := r.Refresh(context.Background(), "bad-key")
	if !errors.Is(err, client.ErrMissingAccessToken) {
		t.Fatalf("Refresh() error = %v, want missing access token", err)
	}
	if got := mock.GetPathCount(flavorsPath); got != 0 {
		t.Errorf("resources requested %d times without a token", got)
	}
	if got := mock.GetLastForm()["apikey"]; got != "bad-key" {
		t.Errorf("apikey form field = %q", got)
	}
}

func TestRefresh_NotFoundFirstPage(t *testing.T) {
	mock := testutil.NewMockCloud()
	defer mock.Close()
	serveAll(mock)
	mock.SetResponse(versionsPath, testutil.MockResponse{StatusCode: http.StatusNotFound})

	_, err := newTestRefresher(t, mock, t.TempDir()).Refresh(context.Background(), "key")
	if client.ClassOf(err) != client.ErrorClassMalformedJSON {
		t.Errorf("Refresh() error = %v, want malformed_json for an empty collection", err)
	}
}

func TestItemCount(t *testing.T) {
	tests := []struct {
		doc  string
		want int
	}{
		{`[1,2,3]`, 3},
		{`[]`, 0},
		{`{"images":[{},{}],"limit":50}`, 2},
		{`{"kubernetes":[{}],"openshift":[{},{}]}`, 3},
		{`{"name":"x"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			if got := itemCount(tt.doc); got != tt.want {
				t.Errorf("itemCount(%s) = %d, want %d", tt.doc, got, tt.want)
			}
		})
	}
}
