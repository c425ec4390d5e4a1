package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>BTC/KRW autotrade</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4"></script>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; background: #101418; color: #e0e0e0; }
h1 { font-size: 1.4rem; }
#perf { margin-bottom: 1rem; }
table { border-collapse: collapse; width: 100%; margin-top: 2rem; font-size: 0.85rem; }
th, td { border-bottom: 1px solid #2a2f36; padding: 0.4rem; text-align: left; vertical-align: top; }
.buy { color: #4caf50; } .sell { color: #f44336; } .hold { color: #9e9e9e; }
</style>
</head>
<body>
<h1>BTC/KRW autotrade</h1>
<div id="perf">loading…</div>
<canvas id="assets" height="90"></canvas>
<table>
<thead><tr><th>time</th><th>decision</th><th>%</th><th>price</th><th>total KRW</th><th>reason</th></tr></thead>
<tbody id="rows"></tbody>
</table>
<script>
const rows = document.getElementById('rows');
let chart;

function addRow(t) {
  const tr = document.createElement('tr');
  tr.innerHTML = '<td>' + new Date(t.timestamp).toLocaleString() + '</td>' +
    '<td class="' + t.decision + '">' + t.decision + '</td>' +
    '<td>' + t.percentage + '</td>' +
    '<td>' + Number(t.btc_krw_price).toLocaleString() + '</td>' +
    '<td>' + Number(t.total_assets).toLocaleString() + '</td>' +
    '<td></td>';
  tr.lastChild.textContent = t.reason;
  rows.prepend(tr);
}

function draw(trades) {
  const colors = trades.map(t => t.decision === 'buy' ? '#4caf50' : t.decision === 'sell' ? '#f44336' : '#607d8b');
  chart = new Chart(document.getElementById('assets'), {
    type: 'line',
    data: {
      labels: trades.map(t => new Date(t.timestamp).toLocaleString()),
      datasets: [{ label: 'total assets (KRW)', data: trades.map(t => Number(t.total_assets)),
        fill: true, pointBackgroundColor: colors, pointRadius: 4 }]
    }
  });
}

fetch('/api/trades').then(r => r.json()).then(trades => { trades.forEach(addRow); draw(trades); });
fetch('/api/performance?days=7').then(r => r.json()).then(p => {
  document.getElementById('perf').textContent = '7-day performance: ' + p.performance_pct.toFixed(2) + '% over ' + p.trades + ' cycles';
});

const es = new EventSource('/decisions/stream');
es.addEventListener('decision', e => {
  const ev = JSON.parse(e.data);
  if (!chart) return;
  chart.data.labels.push(new Date(ev.ts).toLocaleString());
  chart.data.datasets[0].data.push(Number(ev.total_krw));
  chart.update();
});
</script>
</body>
</html>
`
