package launcher

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rony4d/go-airdrop-claim/claim"
	"github.com/rony4d/go-airdrop-claim/inter"
)

// entry is one account,amount row of an ingestion file.
type entry struct {
	line    int
	account inter.AccountID
	amount  string
}

// readEntries parses account,amount rows. Blank lines and lines starting
// with # are skipped, and a first row whose amount is the literal "amount"
// is treated as a header.
func readEntries(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseEntries(f)
}

func parseEntries(r io.Reader) ([]entry, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var out []entry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(out) == 0 && strings.EqualFold(strings.TrimSpace(rec[1]), "amount") {
			continue
		}
		account, err := inter.ParseAccountID(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, entry{line: line, account: account, amount: strings.TrimSpace(rec[1])})
	}
}

func holdingBatch(rows []entry) ([]claim.HoldingEntry, error) {
	batch := make([]claim.HoldingEntry, 0, len(rows))
	for _, row := range rows {
		amount, err := parseTokens(row.amount)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		batch = append(batch, claim.HoldingEntry{Account: row.account, Amount: amount})
	}
	return batch, nil
}

func contributionBatch(rows []entry) ([]claim.ContributionEntry, error) {
	batch := make([]claim.ContributionEntry, 0, len(rows))
	for _, row := range rows {
		amount, err := parseTokens(row.amount)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		if !amount.IsUint64() {
			return nil, fmt.Errorf("line %d: contribution %s out of range", row.line, row.amount)
		}
		batch = append(batch, claim.ContributionEntry{Account: row.account, Amount: amount.Uint64()})
	}
	return batch, nil
}
