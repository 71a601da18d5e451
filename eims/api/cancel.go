package api

type CancelRequest struct {
	Irn        string `json:"Irn"`
	ReasonCode string `json:"ReasonCode"`
	Remark     string `json:"Remark"`
}

type CancelResult struct {
	Irn              string `json:"irn"`
	CancellationDate string `json:"cancellationDate"`
	Message          string `json:"message"`
}

// Cancel reason codes accepted by the registry.
const (
	ReasonDuplicate     = "1"
	ReasonDataError     = "2"
	ReasonGoodsReturned = "3"
	ReasonOther         = "4"
)

func ValidReasonCode(code string) bool {
	switch code {
	case ReasonDuplicate, ReasonDataError, ReasonGoodsReturned, ReasonOther:
		return true
	}
	return false
}
