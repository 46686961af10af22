package cloudrf

import "github.com/couchcryptid/pivot-coverage-service/internal/domain"

// CloudRF area API request and response types.

type payload struct {
	Version     string      `json:"version"`
	Site        string      `json:"site"`
	Network     string      `json:"network"`
	Engine      int         `json:"engine"`
	Coordinates int         `json:"coordinates"`
	Transmitter transmitter `json:"transmitter"`
	Receiver    receiver    `json:"receiver"`
	Feeder      feeder      `json:"feeder"`
	Antenna     antenna     `json:"antenna"`
	Model       model       `json:"model"`
	Environment environment `json:"environment"`
	Output      output      `json:"output"`
}

type transmitter struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Alt       int     `json:"alt"`
	Frq       float64 `json:"frq"`
	Txw       float64 `json:"txw"`
	Bwi       float64 `json:"bwi"`
	PowerUnit string  `json:"powerUnit"`
}

type receiver struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
	Rxg float64 `json:"rxg"`
	Rxs float64 `json:"rxs"`
}

type feeder struct {
	Flt int `json:"flt"`
	Fll int `json:"fll"`
	Fcc int `json:"fcc"`
}

type antenna struct {
	Txg  float64 `json:"txg"`
	Fbr  float64 `json:"fbr"`
	Mode string  `json:"mode"`
	Txl  int     `json:"txl"`
	Ant  int     `json:"ant"`
	Azi  int     `json:"azi"`
	Tlt  int     `json:"tlt"`
	Hbw  int     `json:"hbw"`
	Vbw  int     `json:"vbw"`
	Pol  string  `json:"pol"`
}

type model struct {
	Pm       int `json:"pm"`
	Pe       int `json:"pe"`
	Ked      int `json:"ked"`
	Rel      int `json:"rel"`
	Rcs      int `json:"rcs"`
	Month    int `json:"month"`
	Hour     int `json:"hour"`
	Sunspots int `json:"sunspots_r12"`
}

type environment struct {
	Elevation int    `json:"elevation"`
	Landcover int    `json:"landcover"`
	Buildings int    `json:"buildings"`
	Obstacles int    `json:"obstacles"`
	Clt       string `json:"clt"`
}

type output struct {
	Units string `json:"units"`
	Col   string `json:"col"`
	Out   int    `json:"out"`
	Ber   int    `json:"ber"`
	Mod   int    `json:"mod"`
	Nf    int    `json:"nf"`
	Res   int    `json:"res"`
	Rad   int    `json:"rad"`
}

type response struct {
	PNGWGS84 string    `json:"PNG_WGS84"`
	Bounds   []float64 `json:"bounds"`
}

func newPayload(req domain.SimulationRequest) payload {
	tpl := req.Template
	network := req.Network
	if network == "" {
		network = "Network"
	}
	rxHeight := tpl.RxHeight
	if req.ReceiverHeight > 0 {
		rxHeight = float64(req.ReceiverHeight)
	}

	return payload{
		Version:     apiVersion,
		Site:        tpl.Site,
		Network:     network,
		Engine:      2,
		Coordinates: 1,
		Transmitter: transmitter{
			Lat:       req.Transmitter.Lat,
			Lon:       req.Transmitter.Lon,
			Alt:       req.Transmitter.Height,
			Frq:       tpl.Frequency,
			Txw:       tpl.PowerW,
			Bwi:       tpl.BandwidthMHz,
			PowerUnit: "W",
		},
		Receiver: receiver{Alt: rxHeight, Rxg: tpl.RxGain, Rxs: tpl.RxSens},
		Feeder:   feeder{Flt: 1},
		Antenna: antenna{
			Txg:  tpl.TxGain,
			Fbr:  tpl.FrontBack,
			Mode: "template",
			Ant:  1,
			Hbw:  360,
			Vbw:  90,
			Pol:  "v",
		},
		Model: model{Pm: 1, Pe: 2, Ked: 4, Rel: 95, Rcs: 1, Month: 4, Hour: 12, Sunspots: 100},
		Environment: environment{
			Elevation: 1,
			Landcover: 1,
			Clt:       "Minimal.clt",
		},
		Output: output{Units: "m", Col: tpl.ColourKey, Out: 2, Ber: 1, Mod: 7, Nf: -120, Res: 30, Rad: 10},
	}
}
