// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"strings"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stockparfait/gtfsrt/copier"
	"github.com/stockparfait/gtfsrt/row"
)

// Output tables. The first column of every table is the feed name.
var (
	vehiclePositionsTable = copier.Table{
		Name: "vehicle_positions",
		Columns: []string{"feed", "entity_id", "trip_id", "route_id", "start_date",
			"vehicle_id", "vehicle_label", "latitude", "longitude", "bearing", "speed",
			"stop_id", "current_status", "timestamp"},
	}
	tripUpdatesTable = copier.Table{
		Name: "trip_updates",
		Columns: []string{"feed", "entity_id", "trip_id", "route_id", "start_date",
			"start_time", "schedule_relationship", "vehicle_id", "delay", "timestamp"},
	}
	stopTimeUpdatesTable = copier.Table{
		Name: "stop_time_updates",
		Columns: []string{"feed", "entity_id", "trip_id", "stop_sequence", "stop_id",
			"arrival_time", "arrival_delay", "departure_time", "departure_delay",
			"schedule_relationship"},
	}
	alertsTable = copier.Table{
		Name: "alerts",
		Columns: []string{"feed", "entity_id", "cause", "effect", "url",
			"header_text", "description_text"},
	}
)

// allTables in the order they are copied.
var allTables = []copier.Table{
	vehiclePositionsTable, tripUpdatesTable, stopTimeUpdatesTable, alertsTable,
}

// Rows accumulates output rows per table name.
type Rows map[string][]*row.Row

// mapper converts feed entities into rows for a single feed.
type mapper struct {
	feed      string
	separator string
	escaper   *strings.Replacer
}

func newMapper(feed, sep string) *mapper {
	// Backslash is the escape character of the COPY text format.
	pairs := []string{`\`, `\\`, "\n", " ", "\r", " "}
	if sep != "" && sep != `\` && sep != "\n" && sep != "\r" {
		pairs = append(pairs, sep, " ")
	}
	return &mapper{feed: feed, separator: sep, escaper: strings.NewReplacer(pairs...)}
}

func (m *mapper) newRow(entityID string) *row.Row {
	r := row.New()
	r.Add(m.text(m.feed))
	r.Add(m.text(entityID))
	return r
}

// text makes a value safe to use as a single token.
func (m *mapper) text(s string) string {
	return m.escaper.Replace(s)
}

func (m *mapper) addString(r *row.Row, v *string) {
	if v == nil {
		r.AddNull()
		return
	}
	r.Add(m.text(*v))
}

func addFloat32(r *row.Row, v *float32) {
	if v == nil {
		r.AddNull()
		return
	}
	r.AddFloat32(*v)
}

func addInt32(r *row.Row, v *int32) {
	if v == nil {
		r.AddNull()
		return
	}
	r.AddInt(int(*v))
}

func addInt64(r *row.Row, v *int64) {
	if v == nil {
		r.AddNull()
		return
	}
	r.AddInt64(*v)
}

func addUint32(r *row.Row, v *uint32) {
	if v == nil {
		r.AddNull()
		return
	}
	r.AddUint32(*v)
}

func addUint64(r *row.Row, v *uint64) {
	if v == nil {
		r.AddNull()
		return
	}
	r.AddUint64(*v)
}

// addTranslated adds the first translation, if any.
func (m *mapper) addTranslated(r *row.Row, t *gtfs.TranslatedString) {
	for _, tr := range t.GetTranslation() {
		if tr.Text != nil {
			r.Add(m.text(*tr.Text))
			return
		}
	}
	r.AddNull()
}

// AddMessage appends the rows for all entities of the message. Deleted
// entities are skipped.
func (m *mapper) AddMessage(rows Rows, msg *gtfs.FeedMessage) {
	for _, e := range msg.GetEntity() {
		if e.GetIsDeleted() {
			continue
		}
		if v := e.GetVehicle(); v != nil {
			rows[vehiclePositionsTable.Name] = append(rows[vehiclePositionsTable.Name],
				m.vehiclePosition(e.GetId(), v))
		}
		if tu := e.GetTripUpdate(); tu != nil {
			rows[tripUpdatesTable.Name] = append(rows[tripUpdatesTable.Name],
				m.tripUpdate(e.GetId(), tu))
			for _, stu := range tu.GetStopTimeUpdate() {
				rows[stopTimeUpdatesTable.Name] = append(rows[stopTimeUpdatesTable.Name],
					m.stopTimeUpdate(e.GetId(), tu.GetTrip(), stu))
			}
		}
		if a := e.GetAlert(); a != nil {
			rows[alertsTable.Name] = append(rows[alertsTable.Name], m.alert(e.GetId(), a))
		}
	}
}

// addTrip adds trip_id, route_id and start_date.
func (m *mapper) addTrip(r *row.Row, trip *gtfs.TripDescriptor) {
	if trip == nil {
		r.AddNulls(3)
		return
	}
	m.addString(r, trip.TripId)
	m.addString(r, trip.RouteId)
	m.addString(r, trip.StartDate)
}

func (m *mapper) vehiclePosition(id string, v *gtfs.VehiclePosition) *row.Row {
	r := m.newRow(id)
	m.addTrip(r, v.GetTrip())
	if vd := v.GetVehicle(); vd != nil {
		m.addString(r, vd.Id)
		m.addString(r, vd.Label)
	} else {
		r.AddNulls(2)
	}
	if p := v.GetPosition(); p != nil {
		r.AddFloat32(p.GetLatitude())
		r.AddFloat32(p.GetLongitude())
		addFloat32(r, p.Bearing)
		addFloat32(r, p.Speed)
	} else {
		r.AddNulls(4)
	}
	m.addString(r, v.StopId)
	if v.CurrentStatus != nil {
		r.Add(v.GetCurrentStatus().String())
	} else {
		r.AddNull()
	}
	addUint64(r, v.Timestamp)
	return r
}

func (m *mapper) tripUpdate(id string, tu *gtfs.TripUpdate) *row.Row {
	r := m.newRow(id)
	trip := tu.GetTrip()
	m.addTrip(r, trip)
	if trip != nil {
		m.addString(r, trip.StartTime)
		if trip.ScheduleRelationship != nil {
			r.Add(trip.GetScheduleRelationship().String())
		} else {
			r.AddNull()
		}
	} else {
		r.AddNulls(2)
	}
	if vd := tu.GetVehicle(); vd != nil {
		m.addString(r, vd.Id)
	} else {
		r.AddNull()
	}
	addInt32(r, tu.Delay)
	addUint64(r, tu.Timestamp)
	return r
}

func addStopTimeEvent(r *row.Row, ev *gtfs.TripUpdate_StopTimeEvent) {
	if ev == nil {
		r.AddNulls(2)
		return
	}
	addInt64(r, ev.Time)
	addInt32(r, ev.Delay)
}

func (m *mapper) stopTimeUpdate(id string, trip *gtfs.TripDescriptor, stu *gtfs.TripUpdate_StopTimeUpdate) *row.Row {
	r := m.newRow(id)
	if trip != nil {
		m.addString(r, trip.TripId)
	} else {
		r.AddNull()
	}
	addUint32(r, stu.StopSequence)
	m.addString(r, stu.StopId)
	addStopTimeEvent(r, stu.GetArrival())
	addStopTimeEvent(r, stu.GetDeparture())
	if stu.ScheduleRelationship != nil {
		r.Add(stu.GetScheduleRelationship().String())
	} else {
		r.AddNull()
	}
	return r
}

func (m *mapper) alert(id string, a *gtfs.Alert) *row.Row {
	r := m.newRow(id)
	if a.Cause != nil {
		r.Add(a.GetCause().String())
	} else {
		r.AddNull()
	}
	if a.Effect != nil {
		r.Add(a.GetEffect().String())
	} else {
		r.AddNull()
	}
	m.addTranslated(r, a.GetUrl())
	m.addTranslated(r, a.GetHeaderText())
	m.addTranslated(r, a.GetDescriptionText())
	return r
}
