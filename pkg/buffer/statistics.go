package buffer

// Summary is a point-in-time snapshot of buffer activity. Writes counts
// stored items only; an item rejected by DropNewest shows up in Drops,
// not Writes.
type Summary struct {
	Writes    int64 `json:"writes"`
	Reads     int64 `json:"reads"`
	Overflows int64 `json:"overflows"`
	Drops     int64 `json:"drops"`
	Len       int   `json:"len"`
	Cap       int   `json:"cap"`
	MaxLen    int   `json:"max_len"`
}

// DropRate returns drops relative to total write traffic
// (drops / (writes + drops)), in [0,1].
func (s Summary) DropRate() float64 {
	total := s.Writes + s.Drops
	if total == 0 {
		return 0
	}
	return float64(s.Drops) / float64(total)
}

// Utilization returns the filled fraction of the buffer, in [0,1].
func (s Summary) Utilization() float64 {
	if s.Cap == 0 {
		return 0
	}
	return float64(s.Len) / float64(s.Cap)
}
