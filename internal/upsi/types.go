package upsi

// Table names in the Supabase project.
const (
	TableRecords   = "upsi_records"
	TableAccessLog = "upsi_access_log"
	TableWindows   = "trading_windows"
)

// WindowClosed is the window_status value that blocks trading.
const WindowClosed = "CLOSED"

// Record is one row of upsi_records. A record stays "active" until it is
// made public; is_public=false is what the active-UPSI query filters on.
type Record struct {
	UPSIID        string `json:"upsi_id"`
	CompanySymbol string `json:"company_symbol"`
	UPSIType      string `json:"upsi_type"`
	Description   string `json:"description"`
	Nature        string `json:"nature"`
	CreatedDate   int64  `json:"created_date"`
	PublicDate    int64  `json:"public_date"`
	IsPublic      bool   `json:"is_public"`
}

// AccessLogEntry is one row of upsi_access_log, recording who touched a
// piece of UPSI, when, and why.
type AccessLogEntry struct {
	AccessID           string `json:"access_id"`
	UPSIID             string `json:"upsi_id"`
	AccessorEntityID   string `json:"accessor_entity_id"`
	AccessorName       string `json:"accessor_name"`
	AccessorDesignation string `json:"accessor_designation"`
	AccessTimestamp    int64  `json:"access_timestamp"`
	AccessReason       string `json:"access_reason"`
	AccessMode         string `json:"access_mode"`
}

// TradingWindow is one row of trading_windows: the current window policy
// for a company symbol. Timestamps are epoch seconds.
type TradingWindow struct {
	CompanySymbol   string `json:"company_symbol"`
	WindowStatus    string `json:"window_status"`
	ClosureReason   string `json:"closure_reason"`
	ClosureStart    int64  `json:"closure_start"`
	ExpectedOpening int64  `json:"expected_opening"`
}
