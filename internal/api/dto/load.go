package dto

import "load-tracking-service/internal/services"

type StopRequest struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

type CreateLoadRequest struct {
	Stops       []StopRequest `json:"stops"`
	DriverPhone string        `json:"driverPhone"`
	Geofence    *float64      `json:"geofence"`
}

// Input converts the request into the lifecycle's create input.
func (r CreateLoadRequest) Input() services.CreateLoadInput {
	stops := make([]services.StopInput, 0, len(r.Stops))
	for _, s := range r.Stops {
		stops = append(stops, services.StopInput{Type: s.Type, Address: s.Address})
	}
	return services.CreateLoadInput{
		Stops:       stops,
		DriverPhone: r.DriverPhone,
		Geofence:    r.Geofence,
	}
}

type LocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type TrackingResponse struct {
	TrackingURL string `json:"trackingUrl"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// DriverLocationResponse keeps all keys present, as nulls before the first
// location update.
type DriverLocationResponse struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	City      *string  `json:"city"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}
