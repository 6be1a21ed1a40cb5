package ev

// Ledger event types.
const (
	EventVaultCreated           = "VaultCreated"
	EventVaultRenamed           = "VaultRenamed"
	EventEvidenceAdded          = "EvidenceAdded"
	EventEvidenceDeleted        = "EvidenceDeleted"
	EventLicenseInstalled       = "LicenseInstalled"
	EventLicenseValidated       = "LicenseValidated"
	EventLicenseRejected        = "LicenseRejected"
	EventExportGenerated        = "ExportGenerated"
	EventAnswerBankEntryCreated = "AnswerBankEntryCreated"
	EventAnswerBankEntryUpdated = "AnswerBankEntryUpdated"
	EventAnswerBankEntryDeleted = "AnswerBankEntryDeleted"
)

// EncryptionModeNone is the only vault encryption mode; evidence is stored
// in plaintext and packs are sealed on export instead.
const EncryptionModeNone = "none"

// SourceManualImport marks evidence added from a local file.
const SourceManualImport = "manual_import"
