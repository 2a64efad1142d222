// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stationxml implements the hierarchical-merge endpoint worker:
// sub-responses are StationXML documents that must be merged
// by identifying the same logical <Network>/<Station> across requests via
// an attribute hash, rather than by position.
package stationxml

import (
	"bytes"
	"crypto/sha1"
	"encoding/xml"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/eidaws/federator/internal/endpoint"
)

// Level selects how deep a merge descends, mirroring the FDSNWS station
// service's level=network|station|channel|response query parameter.
type Level int

const (
	LevelNetwork Level = iota
	LevelStation
	LevelChannel
	LevelResponse
)

// node is a generic XML element: StationXML's full schema is large, and
// the merge only needs element identity (name + attributes) and structural
// nesting, so the worker never declares per-element Go structs for it.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr
	CharData []byte
	Children []*node
}

func attrHash(attrs []xml.Attr) string {
	sorted := append([]xml.Attr(nil), attrs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name.Local < sorted[j].Name.Local })
	h := sha1.New()
	for _, a := range sorted {
		fmt.Fprintf(h, "%s=%s;", a.Name.Local, a.Value)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func parseNode(dec *xml.Decoder, start xml.StartElement) (*node, error) {
	n := &node{XMLName: start.Name, Attrs: start.Attr}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseNode(dec, t)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case xml.CharData:
			n.CharData = append(n.CharData, t...)
		case xml.EndElement:
			return n, nil
		}
	}
}

func childrenNamed(n *node, local string) []*node {
	var out []*node
	for _, c := range n.Children {
		if c.XMLName.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// Worker merges the <Network> elements of every sub-response document into
// one tree, keyed by attribute hash at the network and station levels.
type Worker struct {
	level Level
	mu    sync.Mutex
	root  *node
	// byHash indexes the merged *node by attrHash at each nesting level
	// ("network" or "network/station") so repeated sub-requests append
	// only unseen children.
	networkByHash map[string]*node
	stationByHash map[string]*node
}

// New builds a Worker merging at the given level.
func New(level Level) *Worker {
	return &Worker{
		level:         level,
		networkByHash: make(map[string]*node),
		stationByHash: make(map[string]*node),
	}
}

// ParseInto decodes one StationXML sub-response and folds its <Network>
// elements into the running merge tree.
func (w *Worker) ParseInto(resp *http.Response, _ endpoint.ParseContext) error {
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return nil
	case http.StatusRequestEntityTooLarge:
		return endpoint.ErrTooLarge
	case http.StatusOK:
	default:
		return fmt.Errorf("stationxml: upstream status %d", resp.StatusCode)
	}

	dec := xml.NewDecoder(resp.Body)
	var doc *node
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if start, ok := tok.(xml.StartElement); ok {
			doc, err = parseNode(dec, start)
			if err != nil {
				return fmt.Errorf("stationxml: parse: %w", err)
			}
			break
		}
	}
	if doc == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.root == nil {
		w.root = &node{XMLName: doc.XMLName, Attrs: doc.Attrs}
	}
	for _, netNode := range childrenNamed(doc, "Network") {
		w.mergeNetwork(netNode)
	}
	return nil
}

func (w *Worker) mergeNetwork(netNode *node) {
	key := attrHash(netNode.Attrs)
	existing, seen := w.networkByHash[key]
	if !seen {
		w.root.Children = append(w.root.Children, netNode)
		w.networkByHash[key] = netNode
		if w.level >= LevelStation {
			for _, sta := range childrenNamed(netNode, "Station") {
				w.stationByHash[key+"/"+attrHash(sta.Attrs)] = sta
			}
		}
		return
	}
	if w.level == LevelNetwork {
		return
	}
	for _, staNode := range childrenNamed(netNode, "Station") {
		w.mergeStation(key, existing, staNode)
	}
}

func (w *Worker) mergeStation(networkKey string, network *node, staNode *node) {
	staKey := networkKey + "/" + attrHash(staNode.Attrs)
	existing, seen := w.stationByHash[staKey]
	if !seen {
		network.Children = append(network.Children, staNode)
		w.stationByHash[staKey] = staNode
		return
	}
	if w.level < LevelChannel {
		return
	}
	// level = channel|response: append every <Channel> child unconditionally,
	// the upstream guarantees uniqueness per sub-request.
	existing.Children = append(existing.Children, childrenNamed(staNode, "Channel")...)
}

// Flush serializes the merged tree to drain.
func (w *Worker) Flush(drain endpoint.Drain) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.root == nil {
		return nil
	}
	var buf bytes.Buffer
	writeNode(&buf, w.root)
	_, err := drain.Write(buf.Bytes())
	return err
}

func writeNode(buf *bytes.Buffer, n *node) {
	buf.WriteByte('<')
	buf.WriteString(n.XMLName.Local)
	for _, a := range n.Attrs {
		fmt.Fprintf(buf, ` %s="%s"`, a.Name.Local, xmlEscape(a.Value))
	}
	if len(n.Children) == 0 && len(n.CharData) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	buf.Write(n.CharData)
	for _, c := range n.Children {
		writeNode(buf, c)
	}
	buf.WriteString("</")
	buf.WriteString(n.XMLName.Local)
	buf.WriteByte('>')
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
