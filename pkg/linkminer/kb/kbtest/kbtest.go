// Package kbtest builds a small knowledge base shared by package tests.
package kbtest

import (
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/memkb"
)

// Page ids in the fixture
const (
	PlaneTool      = 1
	Aircraft       = 2
	PlaneGeometry  = 3
	Carpentry      = 4
	Woodworking    = 5
	Aviation       = 6
	Airport        = 7
	PlaneDisambig  = 8
	JulyFourth     = 9
	Hangar         = 10
	CarpenterGuild = 11
)

// New returns a snapshot where "plane" is ambiguous between a woodworking
// tool, an aircraft, a geometric surface and a disambiguation page, while
// the surrounding vocabulary is unambiguous.
func New() *memkb.KB {
	m := memkb.New(nil)

	pages := []kb.Page{
		{ID: PlaneTool, Title: "Plane (tool)"},
		{ID: Aircraft, Title: "Fixed-wing aircraft"},
		{ID: PlaneGeometry, Title: "Plane (geometry)"},
		{ID: Carpentry, Title: "Carpentry"},
		{ID: Woodworking, Title: "Woodworking"},
		{ID: Aviation, Title: "Aviation"},
		{ID: Airport, Title: "Airport"},
		{ID: PlaneDisambig, Title: "Plane", Kind: kb.KindDisambiguation},
		{ID: JulyFourth, Title: "July 4"},
		{ID: Hangar, Title: "Hangar"},
		{ID: CarpenterGuild, Title: "Carpenters' guild"},
	}
	for _, p := range pages {
		m.AddPage(p)
	}
	m.SetTotalArticles(1000)
	m.AddRedirect("Aeroplane", "Fixed-wing aircraft")
	m.AddRedirect("Airplane", "Fixed-wing aircraft")

	m.SetAnchor("plane", 100, 400, []memkb.SenseCount{
		{ID: Aircraft, Count: 60},
		{ID: PlaneTool, Count: 25},
		{ID: PlaneGeometry, Count: 10},
		{ID: PlaneDisambig, Count: 5},
	})
	m.SetAnchor("aeroplane", 40, 80, []memkb.SenseCount{{ID: Aircraft, Count: 40}})
	m.SetAnchor("Aeroplane", 40, 80, []memkb.SenseCount{{ID: Aircraft, Count: 40}})
	m.SetAnchor("carpentry", 30, 60, []memkb.SenseCount{{ID: Carpentry, Count: 30}})
	m.SetAnchor("woodworking", 20, 50, []memkb.SenseCount{{ID: Woodworking, Count: 20}})
	m.SetAnchor("aviation", 30, 60, []memkb.SenseCount{{ID: Aviation, Count: 30}})
	m.SetAnchor("airport", 50, 100, []memkb.SenseCount{{ID: Airport, Count: 50}})
	m.SetAnchor("hangar", 10, 40, []memkb.SenseCount{{ID: Hangar, Count: 10}})
	m.SetAnchor("July 4", 10, 20, []memkb.SenseCount{{ID: JulyFourth, Count: 10}})
	m.SetAnchor("carpenter", 10, 100, []memkb.SenseCount{{ID: CarpenterGuild, Count: 10}})
	m.SetAnchor("the", 1, 100000, []memkb.SenseCount{{ID: Carpentry, Count: 1}})

	inLinks := map[int][]int{
		PlaneTool:      {100, 101, 102, 103, 104},
		Aircraft:       {200, 201, 202, 203, 204, 205},
		PlaneGeometry:  {300, 301, 302},
		Carpentry:      {100, 101, 102, 105},
		Woodworking:    {101, 102, 103, 106},
		Aviation:       {200, 201, 202, 206},
		Airport:        {201, 202, 203, 207},
		PlaneDisambig:  {400},
		JulyFourth:     {100, 200, 500},
		Hangar:         {200, 203, 204, 208},
		CarpenterGuild: {100, 103, 105},
	}
	for id, ids := range inLinks {
		m.SetInLinks(id, ids)
	}

	outLinks := map[int][]kb.OutLink{
		PlaneTool: {{ID: Carpentry, Count: 4}, {ID: Woodworking, Count: 4}, {ID: CarpenterGuild, Count: 3}},
		Aircraft:  {{ID: Aviation, Count: 4}, {ID: Airport, Count: 4}, {ID: Hangar, Count: 4}},
		Carpentry: {{ID: PlaneTool, Count: 5}, {ID: Woodworking, Count: 4}},
		Aviation:  {{ID: Aircraft, Count: 6}, {ID: Airport, Count: 4}},
	}
	for id, links := range outLinks {
		m.SetOutLinks(id, links)
	}

	m.SetGenerality(Aircraft, 3)
	m.SetGenerality(PlaneTool, 5)

	return m
}
