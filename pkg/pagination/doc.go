// Package pagination drives paged scene search against the catalog API.
//
// The scene-search endpoint pages via a 1-based startingNumber cursor; each
// response carries the cursor of the following page in nextRecord, so pages
// can only be requested strictly one at a time. That is deliberate here:
// the harvester bounds its outstanding work to a single page, and the next
// page is not requested until the previous page's order has fully drained.
//
// A Pager is not safe for concurrent use and cannot resume mid-page; a
// fresh Pager restarts the search from its query's starting cursor.
package pagination
