package model

// TableRow is one field operation extracted from a report.
type TableRow struct {
	Date         *string  `json:"date"`          // DD.MM or DD.MM.YYYY
	Division     string   `json:"division"`      // farm division, e.g. "АОР", "Юг"
	Operation    string   `json:"operation"`     // e.g. "Пахота", "Дискование"
	Culture      string   `json:"culture"`       // crop
	PerDay       *float64 `json:"per_day"`       // hectares done today
	PerOperation *float64 `json:"per_operation"` // hectares since the operation started
	ValDay       *float64 `json:"val_day"`       // gross yield today, centners
	ValBeginning *float64 `json:"val_beginning"` // gross yield since start, centners
}

// Table is the structured form of a report message.
type Table struct {
	Table []TableRow `json:"table"`
}
