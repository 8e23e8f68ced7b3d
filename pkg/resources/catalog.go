// Package resources describes the IBM Cloud collections that are cached
// as front-end fixtures.
package resources

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// Resource names, in the order they are refreshed.
const (
	ClusterFlavors      = "clusterFlavors"
	ClusterVersions     = "clusterVersions"
	VSIImages           = "vsiImages"
	VSIInstanceProfiles = "vsiInstanceProfiles"
)

// DateLayout is the format of the dated API version parameter.
const DateLayout = "2006-01-02"

// Defaults for the regional endpoints.
const (
	DefaultRegion = "us-south"
	DefaultZone   = "us-south-1"
)

// Resource is one cached collection. URL is a text/template evaluated
// against Params with the sprig function map.
type Resource struct {
	Name string
	URL  string
}

// Params are the values available to URL templates.
type Params struct {
	Date   string
	Region string
	Zone   string
}

// NewParams returns the template parameters for a run on day now.
func NewParams(now time.Time, region, zone string) Params {
	if region == "" {
		region = DefaultRegion
	}
	if zone == "" {
		zone = DefaultZone
	}
	return Params{
		Date:   now.Format(DateLayout),
		Region: region,
		Zone:   zone,
	}
}

// Names returns the resource names in refresh order.
func Names() []string {
	return []string{ClusterFlavors, ClusterVersions, VSIImages, VSIInstanceProfiles}
}

// Default returns the built-in catalog.
func Default() []Resource {
	return []Resource{
		{
			Name: ClusterFlavors,
			URL:  "https://containers.cloud.ibm.com/global/v2/getFlavors?zone={{ .Zone }}&provider=vpc-gen2",
		},
		{
			Name: ClusterVersions,
			URL:  "https://containers.cloud.ibm.com/global/v1/versions",
		},
		{
			Name: VSIImages,
			URL:  "https://{{ .Region }}.iaas.cloud.ibm.com/v1/images?version={{ .Date }}&generation=2&status=available&limit=100",
		},
		{
			Name: VSIInstanceProfiles,
			URL:  "https://{{ .Region }}.iaas.cloud.ibm.com/v1/instance/profiles?version={{ .Date }}&generation=2",
		},
	}
}

// IsKnown reports whether name is one of the cached resources.
func IsKnown(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// WithOverrides returns the default catalog with the URL of each named
// resource replaced. Unknown names are an error.
func WithOverrides(urls map[string]string) ([]Resource, error) {
	catalog := Default()
	for name, u := range urls {
		if !IsKnown(name) {
			return nil, fmt.Errorf("unknown resource %q", name)
		}
		for i := range catalog {
			if catalog[i].Name == name {
				catalog[i].URL = u
			}
		}
	}
	return catalog, nil
}

// Render evaluates the resource's URL template.
func (r Resource) Render(p Params) (string, error) {
	tmpl, err := template.New(r.Name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse url template for %s: %w", r.Name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render url for %s: %w", r.Name, err)
	}
	return buf.String(), nil
}
