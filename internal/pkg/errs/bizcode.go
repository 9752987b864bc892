package errs

const (
	BizCodeInvalidParams = 1001

	BizCodeBuildNotFound         = 8001
	BizCodeDuplicateFullBuild    = 8002
	BizCodeDuplicateDeltaBuild   = 8003
	BizCodePackageFileExists     = 8004
	BizCodeDeltaBaseUnknown      = 8005
	BizCodeDeltaNotAdjacent      = 8006
	BizCodeInsufficientStorage   = 8007
	BizCodeDeltaChangelogDerived = 8008
)
