package commands

const (
	_etc = "/usr/local/etc/nemo"
	_var = "/usr/local/var/nemo"

	DEFAULT_WORKDIR     = _var
	DEFAULT_CONFIG      = _etc + "/nemo-app-drive.yaml"
	DEFAULT_CREDENTIALS = _etc + "/.google/credentials.json"
)
