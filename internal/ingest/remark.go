package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"tradedoc/internal/models"
)

// Remark grammar, all markers case-insensitive and starting on a word boundary:
//
//	contract := CONTRACT_MARK SEP+ [("số" | "so" | "no") SEP+] CODE
//	advance  := ADVANCE_MARK SEP* YYMMDD
//
// CODE runs until whitespace, ',' or ';'. YYMMDD must be a real date in
// 2000-2099. The leftmost contract wins. The leftmost advance whose date token
// is valid wins; advances with an invalid token are ignored. The two
// productions are independent of each other.
var (
	contractPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:hợp\s+đồng|hop\s+dong|hđ|hd)[\s:.#]+(?:(?:số|so|no)[\s.:]+)?([^\s,;]+)`)
	advancePattern  = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:thanh\s+toán\s+trước|thanh\s+toan\s+truoc|tt\s*trước|tt\s*truoc|ứng\s+trước|ung\s+truoc|tạm\s+ứng|tam\s+ung|advance)[\s:.,-]*(\d{6})(?:\D|$)`)
)

// RemarkFields is what the grammar extracts from a bank memo.
type RemarkFields struct {
	ContractNumber  *string
	DeliveryDate    *time.Time
	DeclarationDate *time.Time
}

// HasContract reports whether a contract marker was recognized.
func (f RemarkFields) HasContract() bool {
	return f.ContractNumber != nil
}

// ParseRemark applies the remark grammar. A remark that matches nothing yields
// empty fields and is not an error.
func ParseRemark(remark string) RemarkFields {
	var fields RemarkFields

	if m := contractPattern.FindStringSubmatch(remark); m != nil {
		code := strings.TrimRight(m[1], ".)")
		if code != "" {
			fields.ContractNumber = &code
		}
	}

	if delivery, ok := firstAdvance(remark); ok {
		declaration := models.AddDays(delivery, models.GracePeriodDays)
		fields.DeliveryDate = &delivery
		fields.DeclarationDate = &declaration
	}

	return fields
}

// firstAdvance returns the leftmost advance date that is a real day. Each search
// resumes on the last digit of the previous token, so the separator in front of
// the next marker is still there to match and a digit never counts as one.
func firstAdvance(remark string) (time.Time, bool) {
	for off := 0; off < len(remark); {
		m := advancePattern.FindStringSubmatchIndex(remark[off:])
		if m == nil {
			break
		}
		if d, ok := parseYYMMDD(remark[off+m[2] : off+m[3]]); ok {
			return d, true
		}
		off += m[3] - 1
	}
	return time.Time{}, false
}

func parseYYMMDD(token string) (time.Time, bool) {
	if len(token) != 6 {
		return time.Time{}, false
	}
	yy, err1 := strconv.Atoi(token[0:2])
	mm, err2 := strconv.Atoi(token[2:4])
	dd, err3 := strconv.Atoi(token[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}

	d := time.Date(2000+yy, time.Month(mm), dd, models.DayHour, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. month 13); reject anything it moved
	if d.Year() != 2000+yy || int(d.Month()) != mm || d.Day() != dd {
		return time.Time{}, false
	}
	return d, true
}
