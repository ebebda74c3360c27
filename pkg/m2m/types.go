package m2m

// Session is an authenticated window against the catalog API. The token is
// opaque and is attached as the X-Auth-Token header on every call that
// borrows the session.
type Session struct {
	Token   string
	BaseURL string
}

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SpatialFilter restricts a search to a bounding box ("mbr" filter type).
type SpatialFilter struct {
	FilterType string     `json:"filterType"`
	LowerLeft  Coordinate `json:"lowerLeft"`
	UpperRight Coordinate `json:"upperRight"`
}

// MBR builds a minimum-bounding-rectangle spatial filter.
func MBR(lowerLeft, upperRight Coordinate) *SpatialFilter {
	return &SpatialFilter{
		FilterType: "mbr",
		LowerLeft:  lowerLeft,
		UpperRight: upperRight,
	}
}

// DateRange is a start/end date pair in YYYY-MM-DD form. It serves both as
// the temporal filter on dataset search and as the acquisition filter on
// scene search; the two are independent values.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DatasetSearchRequest is the payload for the dataset-search endpoint.
type DatasetSearchRequest struct {
	DatasetName    string         `json:"datasetName"`
	SpatialFilter  *SpatialFilter `json:"spatialFilter,omitempty"`
	TemporalFilter *DateRange     `json:"temporalFilter,omitempty"`
}

// Dataset is one dataset-search hit.
type Dataset struct {
	DatasetAlias   string `json:"datasetAlias"`
	CollectionName string `json:"collectionName"`
	DatasetID      string `json:"datasetId"`
}

// SceneFilter combines the per-scene search criteria.
type SceneFilter struct {
	SpatialFilter     *SpatialFilter `json:"spatialFilter,omitempty"`
	AcquisitionFilter *DateRange     `json:"acquisitionFilter,omitempty"`
}

// SceneSearchRequest is the payload for the scene-search endpoint.
// StartingNumber is the 1-based page cursor; the response's NextRecord is
// the cursor for the following page.
type SceneSearchRequest struct {
	DatasetName    string       `json:"datasetName"`
	StartingNumber int          `json:"startingNumber,omitempty"`
	MaxResults     int          `json:"maxResults,omitempty"`
	SceneFilter    *SceneFilter `json:"sceneFilter,omitempty"`
}

// SceneRecord is the identifier of one catalog record.
type SceneRecord string

// SceneResult is one catalog hit. Only the record identifier is consumed.
type SceneResult struct {
	EntityID  string `json:"entityId"`
	DisplayID string `json:"displayId"`
}

// SceneSearchResponse is one page of scene-search results.
type SceneSearchResponse struct {
	Results         []SceneResult `json:"results"`
	RecordsReturned int           `json:"recordsReturned"`
	TotalHits       int           `json:"totalHits"`
	StartingNumber  int           `json:"startingNumber"`
	NextRecord      int           `json:"nextRecord"`
}

// DownloadOptionsRequest is the payload for the download-options endpoint.
// The provider caps the entity list; see order.MaxBatchSize.
type DownloadOptionsRequest struct {
	DatasetName string   `json:"datasetName"`
	EntityIDs   []string `json:"entityIds"`
}

// ProductOption is one orderable product for a record. Available reports
// whether the product can be ordered right now; unavailable products are an
// expected catalog condition, not an error.
type ProductOption struct {
	EntityID    string `json:"entityId"`
	ID          string `json:"id"`
	ProductName string `json:"productName"`
	Available   bool   `json:"available"`
}

// DownloadEntry identifies one record/product pair in an order.
type DownloadEntry struct {
	EntityID  string `json:"entityId"`
	ProductID string `json:"productId"`
}

// DownloadRequestRequest is the payload for the download-request endpoint.
type DownloadRequestRequest struct {
	Downloads []DownloadEntry `json:"downloads"`
	Label     string          `json:"label"`
}

// Download is one fulfillment item as reported by the provider.
type Download struct {
	DownloadID int64  `json:"downloadId"`
	EntityID   string `json:"entityId"`
	URL        string `json:"url"`
}

// DownloadRequestResponse is the response of the download-request endpoint.
// Items in PreparingDownloads are accepted but not yet fetchable; items in
// AvailableDownloads can be fetched immediately.
type DownloadRequestResponse struct {
	PreparingDownloads []Download `json:"preparingDownloads"`
	AvailableDownloads []Download `json:"availableDownloads"`
}

// DownloadRetrieveResponse is the response of the download-retrieve
// endpoint, polled by order label.
type DownloadRetrieveResponse struct {
	Available []Download `json:"available"`
	Requested []Download `json:"requested"`
}
