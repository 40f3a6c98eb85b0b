package models

// AnalysisRequest asks for a single image, by local path or by URL
type AnalysisRequest struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ScanRequest asks for a folder scan
type ScanRequest struct {
	Folder    string          `json:"folder" binding:"required"`
	CropsOnly *bool           `json:"crops_only,omitempty"`
	Workers   int             `json:"workers,omitempty"`
	Filter    *FilterCriteria `json:"filter,omitempty"`
	Sort      string          `json:"sort,omitempty"`
	Desc      bool            `json:"desc,omitempty"`
}

// DeleteRequest asks to remove files from a scanned folder
type DeleteRequest struct {
	Folder    string   `json:"folder" binding:"required"`
	Filenames []string `json:"filenames" binding:"required,min=1"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// ImageAnalysisResponse wraps one image result
type ImageAnalysisResponse struct {
	Source            string         `json:"source"`
	Timestamp         string         `json:"timestamp"`
	ProcessingTimeSec float64        `json:"processing_time_sec"`
	Result            ImageResult    `json:"result"`
	Issues            []QualityIssue `json:"issues,omitempty"`
}

// ScanResponse is the folder scan reply
type ScanResponse struct {
	ScanReport
	Summary           Summary `json:"summary"`
	Timestamp         string  `json:"timestamp"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// DeleteResponse lists the files that were removed
type DeleteResponse struct {
	Deleted []string `json:"deleted"`
}
