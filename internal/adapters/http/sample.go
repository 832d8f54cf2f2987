package httpadapter

// SampleDocumentID is the document id the sample contract is indexed under.
const SampleDocumentID = "sample_contract"

// SampleContractText is a short contract used to try the API without uploading a file.
const SampleContractText = `1. Liability
Provider's liability shall be limited to the fees paid in the prior 12 months.

2. Indemnity
Customer shall indemnify Provider for third party claims arising from Customer data.

3. Term and Renewal
This Agreement shall automatically renew for one-year terms unless either party gives 60 days notice.

4. Confidentiality
Both parties must keep confidential information secret for 3 years.`
