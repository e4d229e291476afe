package source

import (
	"encoding/csv"
	"os"
	"path/filepath"

	lenserr "github.com/reqlens/reqlens/internal/errors"
)

// sampleRows is a small mortgage-lending requirement set used for demos and
// smoke tests. It deliberately mixes functional, non-functional, and
// rule-heavy statements.
var sampleRows = [][]string{
	{"id", "name", "description", "type", "priority", "status", "tags"},
	{"REQ-0001", "Online application", "The system shall allow borrowers to submit a mortgage application online.", "functional", "high", "approved", "portal,application"},
	{"REQ-0002", "Credit score approval", "If credit score is above 650, then approve the mortgage application.", "business-rule", "high", "approved", "underwriting,credit"},
	{"REQ-0003", "Loan ceiling", "The loan amount shall not exceed $500,000 for standard applicants.", "business-rule", "high", "approved", "underwriting,limits"},
	{"REQ-0004", "Income verification", "When the stated income exceeds $150,000, the system shall require two years of tax returns.", "business-rule", "medium", "approved", "underwriting,income"},
	{"REQ-0005", "Search latency", "The system shall respond to search queries within 2 seconds.", "non-functional", "medium", "approved", "performance"},
	{"REQ-0006", "Data encryption", "All applicant data must be encrypted at rest and in transit.", "non-functional", "high", "approved", "security"},
	{"REQ-0007", "Rate lock window", "If the borrower locks a rate, then the rate remains valid for 45 days.", "business-rule", "medium", "draft", "pricing,rates"},
	{"REQ-0008", "Duplicate applications", "Borrowers must not submit more than one application per property.", "business-rule", "medium", "approved", "application,validation"},
	{"REQ-0009", "Status dashboard", "Borrowers can view the current status of their application on a dashboard.", "functional", "low", "approved", "portal,status"},
	{"REQ-0010", "Appraisal trigger", "When the appraisal value is below the offer price, the lender must renegotiate the loan terms.", "business-rule", "high", "draft", "appraisal,underwriting"},
	{"REQ-0011", "Document upload", "The system shall allow applicants to upload supporting documents in PDF format.", "functional", "medium", "approved", "portal,documents"},
	{"REQ-0012", "Audit retention", "Application audit records shall be retained for at least 7 years.", "non-functional", "high", "approved", "compliance,audit"},
	{"REQ-0013", "Down payment minimum", "If the down payment is less than 20 percent, then private mortgage insurance is required.", "business-rule", "high", "approved", "underwriting,insurance"},
	{"REQ-0014", "Notification emails", "The system sends a confirmation email when an application is submitted.", "functional", "low", "approved", "notifications"},
	{"REQ-0015", "Concurrent users", "The portal shall support 1000 concurrent users during business hours.", "non-functional", "medium", "draft", "performance,capacity"},
}

// WriteSampleCSV writes the bundled mortgage requirement sample to path,
// creating parent directories as needed. Returns the number of data rows.
func WriteSampleCSV(path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, lenserr.InternalError("cannot create sample directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, lenserr.InternalError("cannot create sample file", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.WriteAll(sampleRows); err != nil {
		return 0, lenserr.InternalError("cannot write sample file", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, lenserr.InternalError("cannot flush sample file", err)
	}

	return len(sampleRows) - 1, nil
}
