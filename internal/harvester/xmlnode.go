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

package harvester

import "encoding/xml"

// node is a generic XML element, the same shape internal/endpoint/stationxml
// uses to walk documents whose schema is too large to declare per-element Go
// structs for: routing-config XML and StationXML inventories both only need
// element identity and attribute lookup, not full unmarshaling.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr
	CharData []byte
	Children []*node
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

func attrOr(n *node, local, fallback string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return fallback
}
