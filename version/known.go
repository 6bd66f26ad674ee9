package version

// Release pairs a shipped host version with its runtime.
type Release struct {
	Version Version
	Runtime Runtime
}

// Released host builds.
var (
	SE_1_1_47 = New(1, 1, 47, 0)
	SE_1_1_51 = New(1, 1, 51, 0)
	SE_1_2_36 = New(1, 2, 36, 0)
	SE_1_2_39 = New(1, 2, 39, 0)
	SE_1_3_5  = New(1, 3, 5, 0)
	SE_1_3_9  = New(1, 3, 9, 0)
	SE_1_4_2  = New(1, 4, 2, 0)
	SE_1_5_3  = New(1, 5, 3, 0)
	SE_1_5_16 = New(1, 5, 16, 0)
	SE_1_5_23 = New(1, 5, 23, 0)
	SE_1_5_39 = New(1, 5, 39, 0)
	SE_1_5_50 = New(1, 5, 50, 0)
	SE_1_5_53 = New(1, 5, 53, 0)
	SE_1_5_62 = New(1, 5, 62, 0)
	SE_1_5_73 = New(1, 5, 73, 0)
	SE_1_5_80 = New(1, 5, 80, 0)
	SE_1_5_97 = New(1, 5, 97, 0)

	AE_1_6_317  = New(1, 6, 317, 0)
	AE_1_6_318  = New(1, 6, 318, 0)
	AE_1_6_323  = New(1, 6, 323, 0)
	AE_1_6_342  = New(1, 6, 342, 0)
	AE_1_6_353  = New(1, 6, 353, 0)
	AE_1_6_629  = New(1, 6, 629, 0)
	AE_1_6_640  = New(1, 6, 640, 0)
	AE_1_6_659  = New(1, 6, 659, 0)
	AE_1_6_678  = New(1, 6, 678, 0)
	AE_1_6_1130 = New(1, 6, 1130, 0)
	AE_1_6_1170 = New(1, 6, 1170, 0)

	VR_1_4_15 = New(1, 4, 15, 0)

	LatestSE = SE_1_5_97
	LatestAE = AE_1_6_1170
	LatestVR = VR_1_4_15
)

// Known lists every released build in ascending order per runtime.
//
// 1.4.2 predates VR and is an SE build even though its minor is 4, which is
// where ClassifyRuntime and ClassifyRuntimeStrict disagree.
var Known = []Release{
	{SE_1_1_47, SE}, {SE_1_1_51, SE}, {SE_1_2_36, SE}, {SE_1_2_39, SE},
	{SE_1_3_5, SE}, {SE_1_3_9, SE}, {SE_1_4_2, SE}, {SE_1_5_3, SE},
	{SE_1_5_16, SE}, {SE_1_5_23, SE}, {SE_1_5_39, SE}, {SE_1_5_50, SE},
	{SE_1_5_53, SE}, {SE_1_5_62, SE}, {SE_1_5_73, SE}, {SE_1_5_80, SE},
	{SE_1_5_97, SE},

	{AE_1_6_317, AE}, {AE_1_6_318, AE}, {AE_1_6_323, AE}, {AE_1_6_342, AE},
	{AE_1_6_353, AE}, {AE_1_6_629, AE}, {AE_1_6_640, AE}, {AE_1_6_659, AE},
	{AE_1_6_678, AE}, {AE_1_6_1130, AE}, {AE_1_6_1170, AE},

	{VR_1_4_15, VR},
}
