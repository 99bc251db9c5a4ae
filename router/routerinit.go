package router

import (
	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/router/algo"
)

// buildGraph 将City中的路网转换为搜索图
// 1. 图中的点为所有路网节点，节点下标写回Node.Index
// 2. 每条road上相邻两点之间建立双向边，边权为球面距离（米），边属性为所属road
func (n *Network) buildGraph() {
	g := algo.NewSearchGraph[*mapdata.Node, *mapdata.Road](nil)
	for _, node := range n.city.Nodes {
		node.Index = g.InitNode(node.XY(), node, false)
	}
	n.roads = make(map[int64]*mapdata.Road, len(n.city.Roads))
	for _, road := range n.city.Roads {
		n.roads[road.ID] = road
		for i := 0; i+1 < len(road.Nodes); i++ {
			u, v := road.Nodes[i], road.Nodes[i+1]
			if u == v {
				continue
			}
			d := u.Distance(v.Coordinate)
			g.InitEdge(u.Index, v.Index, d, road)
			g.InitEdge(v.Index, u.Index, d, road)
		}
	}
	n.graph = g
	log.Infof("road network: %d nodes, %d roads", g.NodeCount(), len(n.roads))
}
