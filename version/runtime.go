package version

// Runtime is the build flavor of the host executable.
type Runtime uint8

const (
	Unknown Runtime = 0
	AE      Runtime = 1 << 0
	SE      Runtime = 1 << 1
	VR      Runtime = 1 << 2
)

func (r Runtime) String() string {
	switch r {
	case AE:
		return "AE"
	case SE:
		return "SE"
	case VR:
		return "VR"
	default:
		return "Unknown"
	}
}

func (r Runtime) IsAE() bool { return r == AE }
func (r Runtime) IsSE() bool { return r == SE }
func (r Runtime) IsVR() bool { return r == VR }

// FormatVersion returns the address library record format for r: 2 for AE,
// 1 for everything else.
func (r Runtime) FormatVersion() int32 {
	if r == AE {
		return 2
	}
	return 1
}

// LibraryPrefix is the file name prefix of r's address library.
func (r Runtime) LibraryPrefix() string {
	if r == AE {
		return "versionlib"
	}
	return "version"
}

// ClassifyRuntime derives the runtime from the minor version alone:
// 4 is VR, 6 is AE, anything else is SE.
func ClassifyRuntime(v Version) Runtime {
	switch v.Minor() {
	case 4:
		return VR
	case 6:
		return AE
	default:
		return SE
	}
}

// ClassifyRuntimeStrict only recognizes released versions and returns
// Unknown for anything else.
func ClassifyRuntimeStrict(v Version) Runtime {
	for _, k := range Known {
		if k.Version == v {
			return k.Runtime
		}
	}
	return Unknown
}
