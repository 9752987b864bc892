package model

// UpdateCheckParam is a device's report to the update decision engine.
type UpdateCheckParam struct {
	Codename           string
	Channel            string
	CurrentIncremental string
	Serial             string
	Meta               RequestMeta
}

// UploadedFile is a package file already saved to a temporary location.
type UploadedFile struct {
	Filename string
	TempPath string
	Size     int64
	MD5      string
	SHA256   string
}

// IngestParam is one firmware ingestion attempt: a prop metadata file, a
// changelog document, a full package and an optional delta package.
type IngestParam struct {
	PropContent   string
	ChangelogHTML string
	Full          UploadedFile
	Delta         *UploadedFile
	FullURL       string
	DeltaURL      string
	PublishFull   bool
	PublishDelta  bool
	MandatoryFull bool
	CreatedBy     string
	Meta          RequestMeta
}

// PatchBuildParam merges only the supplied fields into an existing build.
type PatchBuildParam struct {
	Codename    string
	Channel     string
	BuildID     string
	Publish     *bool
	Mandatory   *bool
	URL         *string
	ChangesHTML *string
	Username    string
	Meta        RequestMeta
}

// DeleteBuildParam removes a build record for administrative cleanup.
type DeleteBuildParam struct {
	Codename string
	Channel  string
	BuildID  string
	Username string
	Meta     RequestMeta
}
