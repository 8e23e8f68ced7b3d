// Package pagination follows "next" links across the pages of an IBM Cloud
// collection.
//
// Pages are fetched one after another. After every page the response's Link
// header is inspected for a rel="next" target; the walk ends when there is
// none, when the server answers 404 (that page is dropped), or when a next
// link points back at a page already fetched.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(httpClient)
//	result, err := fetcher.Fetch(ctx, "https://containers.cloud.ibm.com/global/v1/versions", token)
//	if err != nil {
//		return err
//	}
//	doc, err := result.Merge()
//
// Result.Concat returns the raw page bodies glued together, which is only a
// valid JSON document when the collection fits on one page. Result.Merge
// returns a single document for any number of pages:
//   - one page is returned verbatim
//   - array pages are joined into one array
//   - object pages keep page one's members; every member that is an array
//     on any page holds the elements of that member from all pages
package pagination
